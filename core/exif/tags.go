package exif

// Attribute names the store itself reasons about. Any name known to the
// tag dictionary is accepted by the attribute methods.
const (
	TagImageWidth    = "ImageWidth"
	TagImageLength   = "ImageLength"
	TagMake          = "Make"
	TagModel         = "Model"
	TagOrientation   = "Orientation"
	TagDateTime      = "DateTime"
	TagXmp           = "Xmp"
	TagLightSource   = "LightSource"
	TagFNumber       = "FNumber"
	TagISOSpeed      = "PhotographicSensitivity"
	TagUserComment   = "UserComment"
	TagCopyright     = "Copyright"
	TagArtist        = "Artist"
	TagSoftware      = "Software"
	TagThumbWidth    = "ThumbnailImageWidth"
	TagThumbLength   = "ThumbnailImageLength"
	TagCompression   = "Compression"
	TagPhotometric   = "PhotometricInterpretation"
	TagBitsPerSample = "BitsPerSample"

	TagDateTimeOriginal    = "DateTimeOriginal"
	TagDateTimeDigitized   = "DateTimeDigitized"
	TagSubSecTime          = "SubSecTime"
	TagSubSecTimeOriginal  = "SubSecTimeOriginal"
	TagSubSecTimeDigitized = "SubSecTimeDigitized"
	TagOffsetTime          = "OffsetTime"
	TagOffsetTimeOriginal  = "OffsetTimeOriginal"
	TagOffsetTimeDigitized = "OffsetTimeDigitized"

	TagGPSLatitude         = "GPSLatitude"
	TagGPSLatitudeRef      = "GPSLatitudeRef"
	TagGPSLongitude        = "GPSLongitude"
	TagGPSLongitudeRef     = "GPSLongitudeRef"
	TagGPSAltitude         = "GPSAltitude"
	TagGPSAltitudeRef      = "GPSAltitudeRef"
	TagGPSTimeStamp        = "GPSTimeStamp"
	TagGPSDateStamp        = "GPSDateStamp"
	TagGPSSpeed            = "GPSSpeed"
	TagGPSSpeedRef         = "GPSSpeedRef"
	TagGPSProcessingMethod = "GPSProcessingMethod"
)
