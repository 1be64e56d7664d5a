package mqtt

import "fmt"

// Topic names used by the BAES gateways and the bridge.
const (
	// TopicData carries one JSON status frame per message from the gateways.
	TopicData = "baes/data"

	// TopicPrefixBridge is the base for the bridge's own topics.
	TopicPrefixBridge = "baes/bridge"
)

// Topics builds bridge topic names.
type Topics struct{}

// Status is the retained online/offline topic for a bridge instance.
//
// Example: baes/bridge/baes-bridge/status
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixBridge, clientID)
}

// Rejected is where the bridge republishes frames the API refused.
//
// Example: baes/bridge/baes-bridge/rejected
func (Topics) Rejected(clientID string) string {
	return fmt.Sprintf("%s/%s/rejected", TopicPrefixBridge, clientID)
}
