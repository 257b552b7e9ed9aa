// Package oralb integrates Oral-B toothbrushes over passive BLE.
//
// The brush broadcasts its state in manufacturer-data advertisements;
// nothing is ever written to it. An AdvertisementSource feeds frames
// into a passive coordinator, which the integration starts only after
// every sensor has subscribed, so the first decoded state reaches all
// of them.
package oralb
