// Package bridge forwards gateway frames from MQTT to the HTTP API.
//
// Gateways publish one JSON object per reading on baes/data. Decode turns
// a frame into a Reading; Client posts readings to POST /status with a
// bearer token obtained from /auth/login; Bridge glues the two together
// as an mqtt.MessageHandler and republishes frames the API refused.
package bridge
