// Package mqtt provides optional MQTT event announcements.
//
// When enabled in config, the service publishes dispatch activity and
// device lifecycle events so home-automation systems (Home Assistant,
// Node-RED) can react to playback without polling the HTTP API.
//
// The client is publish-only. Nothing in the service consumes inbound
// MQTT traffic, so there is no subscription surface.
//
// # Topics
//
//   - tvcast/system/status        retained online/offline status with LWT
//   - tvcast/activity             one JSON event per dispatch log entry
//   - tvcast/device/{id}/event    pairing and default-device changes
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	activityLog.Subscribe(func(entry activity.Entry) {
//	    client.PublishJSON(mqtt.Topics{}.Activity(), entry)
//	})
package mqtt
