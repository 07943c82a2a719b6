package tiff

import "sort"

// Group identifies one of the directories an EXIF structure can carry.
type Group int

const (
	GroupPrimary Group = iota
	GroupExif
	GroupGPS
	GroupInterop
	GroupThumbnail

	NumGroups = 5
)

var groupNames = [NumGroups]string{"Primary", "Exif", "GPS", "Interop", "Thumbnail"}

func (g Group) String() string {
	if g < 0 || int(g) >= NumGroups {
		return "Unknown"
	}
	return groupNames[g]
}

// Groups lists every group in serialization order.
var Groups = [NumGroups]Group{GroupPrimary, GroupExif, GroupGPS, GroupInterop, GroupThumbnail}

// Sub-IFD pointer tags. They never appear as attributes; the parser
// follows them and the serializer recomputes them.
const (
	TagExifIFDPointer    uint16 = 0x8769
	TagGPSIFDPointer     uint16 = 0x8825
	TagInteropIFDPointer uint16 = 0xA005
)

// Tag ids the engine itself needs to reason about.
const (
	TagImageWidth              uint16 = 0x0100
	TagImageLength             uint16 = 0x0101
	TagBitsPerSample           uint16 = 0x0102
	TagCompression             uint16 = 0x0103
	TagPhotometric             uint16 = 0x0106
	TagStripOffsets            uint16 = 0x0111
	TagOrientation             uint16 = 0x0112
	TagSamplesPerPixel         uint16 = 0x0115
	TagRowsPerStrip            uint16 = 0x0116
	TagStripByteCounts         uint16 = 0x0117
	TagDateTime                uint16 = 0x0132
	TagXmp                     uint16 = 0x02BC
	TagTileOffsets             uint16 = 0x0144
	TagTileByteCounts          uint16 = 0x0145
	TagJPEGInterchange         uint16 = 0x0201
	TagJPEGInterchangeLength   uint16 = 0x0202
	TagDateTimeOriginal        uint16 = 0x9003
	TagLightSource             uint16 = 0x9208
	TagPhotographicSensitivity uint16 = 0x8827
)

// pointerTargets maps (group the pointer lives in, tag) to the group it opens.
var pointerTargets = map[Group]map[uint16]Group{
	GroupPrimary: {TagExifIFDPointer: GroupExif, TagGPSIFDPointer: GroupGPS},
	GroupExif:    {TagInteropIFDPointer: GroupInterop},
}

// PointerTarget reports whether id is a sub-IFD pointer inside g.
func PointerTarget(g Group, id uint16) (Group, bool) {
	t, ok := pointerTargets[g][id]
	return t, ok
}

// TagDef is one dictionary entry. Alt is a second accepted type for tags
// such as ImageWidth that may be SHORT or LONG.
type TagDef struct {
	Name string
	ID   uint16
	Type DataType
	Alt  DataType
}

// Accepts reports whether t is one of the declared types.
func (d TagDef) Accepts(t DataType) bool { return t == d.Type || (d.Alt != 0 && t == d.Alt) }

var primaryTags = []TagDef{
	{"NewSubfileType", 0x00FE, Long, 0},
	{"SubfileType", 0x00FF, Long, 0},
	{"ImageWidth", TagImageWidth, Short, Long},
	{"ImageLength", TagImageLength, Short, Long},
	{"BitsPerSample", TagBitsPerSample, Short, 0},
	{"Compression", TagCompression, Short, 0},
	{"PhotometricInterpretation", TagPhotometric, Short, 0},
	{"ImageDescription", 0x010E, ASCII, 0},
	{"Make", 0x010F, ASCII, 0},
	{"Model", 0x0110, ASCII, 0},
	{"StripOffsets", TagStripOffsets, Short, Long},
	{"Orientation", TagOrientation, Short, 0},
	{"SamplesPerPixel", TagSamplesPerPixel, Short, 0},
	{"RowsPerStrip", TagRowsPerStrip, Short, Long},
	{"StripByteCounts", TagStripByteCounts, Short, Long},
	{"XResolution", 0x011A, Rat, 0},
	{"YResolution", 0x011B, Rat, 0},
	{"PlanarConfiguration", 0x011C, Short, 0},
	{"ResolutionUnit", 0x0128, Short, 0},
	{"TransferFunction", 0x012D, Short, 0},
	{"Software", 0x0131, ASCII, 0},
	{"DateTime", TagDateTime, ASCII, 0},
	{"Artist", 0x013B, ASCII, 0},
	{"WhitePoint", 0x013E, Rat, 0},
	{"PrimaryChromaticities", 0x013F, Rat, 0},
	{"SubIFDs", 0x014A, Long, 0},
	{"JPEGInterchangeFormat", TagJPEGInterchange, Long, 0},
	{"JPEGInterchangeFormatLength", TagJPEGInterchangeLength, Long, 0},
	{"YCbCrCoefficients", 0x0211, Rat, 0},
	{"YCbCrSubSampling", 0x0212, Short, 0},
	{"YCbCrPositioning", 0x0213, Short, 0},
	{"ReferenceBlackWhite", 0x0214, Rat, 0},
	{"Xmp", TagXmp, Byte, Undefined},
	{"Copyright", 0x8298, ASCII, 0},
	{"DNGVersion", 0xC612, Byte, 0},
	{"DefaultCropSize", 0xC620, Short, Long},
}

var exifTags = []TagDef{
	{"ExposureTime", 0x829A, Rat, 0},
	{"FNumber", 0x829D, Rat, 0},
	{"ExposureProgram", 0x8822, Short, 0},
	{"SpectralSensitivity", 0x8824, ASCII, 0},
	{"PhotographicSensitivity", TagPhotographicSensitivity, Short, 0},
	{"OECF", 0x8828, Undefined, 0},
	{"SensitivityType", 0x8830, Short, 0},
	{"StandardOutputSensitivity", 0x8831, Long, 0},
	{"RecommendedExposureIndex", 0x8832, Long, 0},
	{"ISOSpeed", 0x8833, Long, 0},
	{"ISOSpeedLatitudeyyy", 0x8834, Long, 0},
	{"ISOSpeedLatitudezzz", 0x8835, Long, 0},
	{"ExifVersion", 0x9000, Undefined, 0},
	{"DateTimeOriginal", TagDateTimeOriginal, ASCII, 0},
	{"DateTimeDigitized", 0x9004, ASCII, 0},
	{"OffsetTime", 0x9010, ASCII, 0},
	{"OffsetTimeOriginal", 0x9011, ASCII, 0},
	{"OffsetTimeDigitized", 0x9012, ASCII, 0},
	{"ComponentsConfiguration", 0x9101, Undefined, 0},
	{"CompressedBitsPerPixel", 0x9102, Rat, 0},
	{"ShutterSpeedValue", 0x9201, SRat, 0},
	{"ApertureValue", 0x9202, Rat, 0},
	{"BrightnessValue", 0x9203, SRat, 0},
	{"ExposureBiasValue", 0x9204, SRat, 0},
	{"MaxApertureValue", 0x9205, Rat, 0},
	{"SubjectDistance", 0x9206, Rat, 0},
	{"MeteringMode", 0x9207, Short, 0},
	{"LightSource", TagLightSource, Short, 0},
	{"Flash", 0x9209, Short, 0},
	{"FocalLength", 0x920A, Rat, 0},
	{"SubjectArea", 0x9214, Short, 0},
	{"MakerNote", 0x927C, Undefined, 0},
	{"UserComment", 0x9286, Undefined, 0},
	{"SubSecTime", 0x9290, ASCII, 0},
	{"SubSecTimeOriginal", 0x9291, ASCII, 0},
	{"SubSecTimeDigitized", 0x9292, ASCII, 0},
	{"FlashpixVersion", 0xA000, Undefined, 0},
	{"ColorSpace", 0xA001, Short, 0},
	{"PixelXDimension", 0xA002, Short, Long},
	{"PixelYDimension", 0xA003, Short, Long},
	{"RelatedSoundFile", 0xA004, ASCII, 0},
	{"FlashEnergy", 0xA20B, Rat, 0},
	{"SpatialFrequencyResponse", 0xA20C, Undefined, 0},
	{"FocalPlaneXResolution", 0xA20E, Rat, 0},
	{"FocalPlaneYResolution", 0xA20F, Rat, 0},
	{"FocalPlaneResolutionUnit", 0xA210, Short, 0},
	{"SubjectLocation", 0xA214, Short, 0},
	{"ExposureIndex", 0xA215, Rat, 0},
	{"SensingMethod", 0xA217, Short, 0},
	{"FileSource", 0xA300, Undefined, 0},
	{"SceneType", 0xA301, Undefined, 0},
	{"CFAPattern", 0xA302, Undefined, 0},
	{"CustomRendered", 0xA401, Short, 0},
	{"ExposureMode", 0xA402, Short, 0},
	{"WhiteBalance", 0xA403, Short, 0},
	{"DigitalZoomRatio", 0xA404, Rat, 0},
	{"FocalLengthIn35mmFilm", 0xA405, Short, 0},
	{"SceneCaptureType", 0xA406, Short, 0},
	{"GainControl", 0xA407, Short, 0},
	{"Contrast", 0xA408, Short, 0},
	{"Saturation", 0xA409, Short, 0},
	{"Sharpness", 0xA40A, Short, 0},
	{"DeviceSettingDescription", 0xA40B, Undefined, 0},
	{"SubjectDistanceRange", 0xA40C, Short, 0},
	{"ImageUniqueID", 0xA420, ASCII, 0},
	{"CameraOwnerName", 0xA430, ASCII, 0},
	{"BodySerialNumber", 0xA431, ASCII, 0},
	{"LensSpecification", 0xA432, Rat, 0},
	{"LensMake", 0xA433, ASCII, 0},
	{"LensModel", 0xA434, ASCII, 0},
	{"Gamma", 0xA500, Rat, 0},
}

var gpsTags = []TagDef{
	{"GPSVersionID", 0x0000, Byte, 0},
	{"GPSLatitudeRef", 0x0001, ASCII, 0},
	{"GPSLatitude", 0x0002, Rat, 0},
	{"GPSLongitudeRef", 0x0003, ASCII, 0},
	{"GPSLongitude", 0x0004, Rat, 0},
	{"GPSAltitudeRef", 0x0005, Byte, 0},
	{"GPSAltitude", 0x0006, Rat, 0},
	{"GPSTimeStamp", 0x0007, Rat, 0},
	{"GPSSatellites", 0x0008, ASCII, 0},
	{"GPSStatus", 0x0009, ASCII, 0},
	{"GPSMeasureMode", 0x000A, ASCII, 0},
	{"GPSDOP", 0x000B, Rat, 0},
	{"GPSSpeedRef", 0x000C, ASCII, 0},
	{"GPSSpeed", 0x000D, Rat, 0},
	{"GPSTrackRef", 0x000E, ASCII, 0},
	{"GPSTrack", 0x000F, Rat, 0},
	{"GPSImgDirectionRef", 0x0010, ASCII, 0},
	{"GPSImgDirection", 0x0011, Rat, 0},
	{"GPSMapDatum", 0x0012, ASCII, 0},
	{"GPSDestLatitudeRef", 0x0013, ASCII, 0},
	{"GPSDestLatitude", 0x0014, Rat, 0},
	{"GPSDestLongitudeRef", 0x0015, ASCII, 0},
	{"GPSDestLongitude", 0x0016, Rat, 0},
	{"GPSDestBearingRef", 0x0017, ASCII, 0},
	{"GPSDestBearing", 0x0018, Rat, 0},
	{"GPSDestDistanceRef", 0x0019, ASCII, 0},
	{"GPSDestDistance", 0x001A, Rat, 0},
	{"GPSProcessingMethod", 0x001B, Undefined, 0},
	{"GPSAreaInformation", 0x001C, Undefined, 0},
	{"GPSDateStamp", 0x001D, ASCII, 0},
	{"GPSDifferential", 0x001E, Short, 0},
	{"GPSHPositioningError", 0x001F, Rat, 0},
}

var interopTags = []TagDef{
	{"InteroperabilityIndex", 0x0001, ASCII, 0},
}

// The thumbnail directory reuses primary ids; the three that would clash
// with primary attribute names get their own names.
var thumbnailTags = []TagDef{
	{"NewSubfileType", 0x00FE, Long, 0},
	{"SubfileType", 0x00FF, Long, 0},
	{"ThumbnailImageWidth", TagImageWidth, Short, Long},
	{"ThumbnailImageLength", TagImageLength, Short, Long},
	{"BitsPerSample", TagBitsPerSample, Short, 0},
	{"Compression", TagCompression, Short, 0},
	{"PhotometricInterpretation", TagPhotometric, Short, 0},
	{"ImageDescription", 0x010E, ASCII, 0},
	{"Make", 0x010F, ASCII, 0},
	{"Model", 0x0110, ASCII, 0},
	{"StripOffsets", TagStripOffsets, Short, Long},
	{"ThumbnailOrientation", TagOrientation, Short, 0},
	{"SamplesPerPixel", TagSamplesPerPixel, Short, 0},
	{"RowsPerStrip", TagRowsPerStrip, Short, Long},
	{"StripByteCounts", TagStripByteCounts, Short, Long},
	{"XResolution", 0x011A, Rat, 0},
	{"YResolution", 0x011B, Rat, 0},
	{"PlanarConfiguration", 0x011C, Short, 0},
	{"ResolutionUnit", 0x0128, Short, 0},
	{"Software", 0x0131, ASCII, 0},
	{"DateTime", TagDateTime, ASCII, 0},
	{"Artist", 0x013B, ASCII, 0},
	{"JPEGInterchangeFormat", TagJPEGInterchange, Long, 0},
	{"JPEGInterchangeFormatLength", TagJPEGInterchangeLength, Long, 0},
	{"YCbCrCoefficients", 0x0211, Rat, 0},
	{"YCbCrSubSampling", 0x0212, Short, 0},
	{"YCbCrPositioning", 0x0213, Short, 0},
	{"ReferenceBlackWhite", 0x0214, Rat, 0},
}

// aliases maps historical names onto the dictionary name.
var aliases = map[string]string{
	"ISOSpeedRatings": "PhotographicSensitivity",
}

// Placement is where a named tag lives.
type Placement struct {
	Group Group
	Def   TagDef
}

var (
	byName [NumGroups]map[string]TagDef
	byID   [NumGroups]map[uint16]TagDef
	names  []string
)

func init() {
	tables := [NumGroups][]TagDef{primaryTags, exifTags, gpsTags, interopTags, thumbnailTags}
	seen := map[string]bool{}
	for g, defs := range tables {
		byName[g] = make(map[string]TagDef, len(defs))
		byID[g] = make(map[uint16]TagDef, len(defs))
		for _, d := range defs {
			byName[g][d.Name] = d
			byID[g][d.ID] = d
			if !seen[d.Name] {
				seen[d.Name] = true
				names = append(names, d.Name)
			}
		}
	}
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
}

// Canonical resolves an alias to its dictionary name.
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// Lookup returns every group that defines name, in group order.
func Lookup(name string) []Placement {
	name = Canonical(name)
	var out []Placement
	for _, g := range Groups {
		if d, ok := byName[g][name]; ok {
			out = append(out, Placement{Group: g, Def: d})
		}
	}
	return out
}

// Known reports whether name is in the dictionary.
func Known(name string) bool { return len(Lookup(name)) > 0 }

// ByID returns the dictionary entry for id within g.
func ByID(g Group, id uint16) (TagDef, bool) {
	if g < 0 || int(g) >= NumGroups {
		return TagDef{}, false
	}
	d, ok := byID[g][id]
	return d, ok
}

// Names lists every attribute name, aliases included, sorted.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}
