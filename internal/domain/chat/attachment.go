package chat

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ProviderAzureBlob tags attachment references backed by the blob store.
// References with any other provider pass through the normalizer untouched.
const ProviderAzureBlob = "azure-blob"

// Content part type tags. Parts with an unrecognized tag are ignored rather
// than rejected at the boundary where external data enters.
const (
	PartTypeText  = "text"
	PartTypeImage = "image"
	PartTypeFile  = "file"
)

// AttachmentReference is the durable, credential-free pointer stored inside
// a message in place of inline binary content. Once persisted, ObjectID
// never changes; only the signed URL derived from it is regenerated per read.
type AttachmentReference struct {
	Provider string `json:"provider"`
	ObjectID string `json:"objectId"`
}

// ContentPart is the tagged union over {text, image, file}. Image parts
// carry their payload in Image, file parts in Data; both hold either a
// download URL or (transiently, client-side only) an inline data URI.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Attachment struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Name        string               `json:"name,omitempty"`
	ContentType string               `json:"contentType,omitempty"`
	Status      json.RawMessage      `json:"status,omitempty"`
	Content     []ContentPart        `json:"content,omitempty"`
	Storage     *AttachmentReference `json:"storage,omitempty"`
}

// StorageRef returns the attachment's blob reference if it is present and
// provider-recognized.
func (a *Attachment) StorageRef() (*AttachmentReference, bool) {
	if a == nil || a.Storage == nil {
		return nil, false
	}
	if a.Storage.Provider != ProviderAzureBlob || a.Storage.ObjectID == "" {
		return nil, false
	}
	return a.Storage, true
}

func DecodeAttachments(raw datatypes.JSON) ([]Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []Attachment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func EncodeAttachments(atts []Attachment) (datatypes.JSON, error) {
	if atts == nil {
		return nil, nil
	}
	raw, err := json.Marshal(atts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
