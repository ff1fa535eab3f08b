package domain

// ScoutResult is what acquisition (URL or screenshot) could recover about a
// post. Empty Author and Content mean the operator has to type it in.
type ScoutResult struct {
	Author           string `json:"author"`
	Content          string `json:"content"`
	MediaDescription string `json:"mediaDescription,omitempty"`
	Platform         string `json:"platform"`
}

// IsEmpty reports whether acquisition failed and manual input is needed.
func (s ScoutResult) IsEmpty() bool {
	return s.Author == "" && s.Content == ""
}

// DecodeScoutResult parses the structured vision output. Unknown or
// mistyped fields become empty strings.
func DecodeScoutResult(payload []byte) (ScoutResult, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return ScoutResult{}, err
	}
	return ScoutResult{
		Author:           stringField(fields, "author"),
		Content:          stringField(fields, "content"),
		MediaDescription: stringField(fields, "mediaDescription"),
		Platform:         stringField(fields, "platform"),
	}, nil
}
