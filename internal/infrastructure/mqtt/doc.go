// Package mqtt mirrors climate state onto an MQTT broker for other
// building systems to consume.
//
// The client only publishes; it never subscribes. Topics live under
// graylogic/climate:
//
//	graylogic/climate/status         online/offline (retained, also the LWT)
//	graylogic/climate/state/{id}     unit snapshot (retained)
//	graylogic/climate/outdoor        outdoor conditions (retained)
//	graylogic/climate/command/{id}   command failures
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.DeviceState(unit.ID), unit, true)
//
// Reconnects use paho's exponential backoff between
// reconnect.initial_delay and reconnect.max_delay seconds. Retained state
// survives on the broker; SetOnConnect lets the caller republish after a
// broker restart.
package mqtt
