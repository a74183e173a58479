// Package media turns an uploaded original into its derivative set.
//
// Images get a bounded display rendition, a blurred cover-fit backdrop
// and a thumbnail. Videos get a web-playable transcode, a poster frame,
// a frame thumbnail, and a backdrop blurred from the poster. Variants
// fail independently: one bad derivative never suppresses the others.
package media
