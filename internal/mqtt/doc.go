// Package mqtt announces a text2llm node to Home Assistant over MQTT.
// The node appears as a device with availability tracking and a small
// set of diagnostic sensors: uptime, version, profile, and how many
// channels, accounts and plugins are live.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads and a
// birth message ("online") to the availability topic. A will message
// flips the availability topic to "offline" on unexpected disconnects.
package mqtt
