// Package mqtt wraps the Eclipse Paho client for the BAES bridge.
//
// Gateways publish one JSON frame per device reading on baes/data. The
// bridge subscribes there, and announces its own liveness on a retained
// baes/bridge/<client-id>/status topic backed by a Last Will message.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.Subscribe(cfg.MQTT.Topic, 1, handler)
package mqtt
