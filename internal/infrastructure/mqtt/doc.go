// Package mqtt publishes bridge state to a local broker and manages the
// connection lifecycle around it.
//
// The bridge mirrors controller and zone state from the cloud onto MQTT
// topics so home-automation consumers (Home Assistant, Node-RED, custom
// dashboards) can follow irrigation activity without ever touching the
// cloud API themselves. State topics are retained, so a consumer that
// connects late immediately sees the current picture.
//
// The Client wraps eclipse/paho with:
//   - automatic reconnect and subscription restore
//   - QoS validation and a payload size cap on publish
//   - a retained Last Will on rachio/bridge/status, so consumers can
//     distinguish a crashed bridge from a gracefully stopped one
//   - optional TLS; anonymous plaintext is for local development only
//
// Topic layout lives in topics.go; build topics through the Topics
// helper rather than concatenating strings.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Follow every controller's state.
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("%s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish retained state for one controller.
//	client.Publish(mqtt.Topics{}.DeviceState(dev.UID), payload, 1, true)
package mqtt
