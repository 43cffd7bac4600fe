// media/types.go
package media

type AssetType string

const (
	AssetTypeRawPhoto     AssetType = "raw_photo"
	AssetTypeSessionPhoto AssetType = "session_photo"
	AssetTypeThumbnail    AssetType = "thumbnail"
	AssetTypeUnknown      AssetType = "unknown"
)
