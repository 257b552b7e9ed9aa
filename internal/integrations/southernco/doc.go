// Package southernco integrates Southern Company utility accounts.
//
// The vendor API issues a JWT at login; the client tracks its expiry
// and re-authenticates shortly before it lapses. Each config entry
// polls monthly usage and hourly energy records for every account on
// the login, renders the monthly figures as sensors, and streams
// hourly records into InfluxDB. Hourly records missing a timestamp or
// a usage figure are dropped rather than written as zeros.
package southernco
