// Package imu holds the data model for handheld IMU telemetry.
//
// Responsibilities: the wire-level Sample decoded from one datagram and the
// DeviceState fused from a device's stream. Decoding lives in imu/parse,
// the shared device table in imu/registry and socket ingestion in
// imu/network.
//
// Dependency rule: imu may be imported by every other package in this
// module but imports none of them.
package imu
