package domain

// ContentScheduleItem is one slot of a chronoposting plan. A plan is always
// replaced as a whole.
type ContentScheduleItem struct {
	Day         string `json:"day"`
	Time        string `json:"time"`
	Platform    string `json:"platform"`
	Format      string `json:"format"`
	ContentIdea string `json:"contentIdea"`
	Objective   string `json:"objective"`
}

// DecodeSchedule parses a chronoposting plan, dropping items without a day or
// content idea.
func DecodeSchedule(payload []byte) ([]ContentScheduleItem, error) {
	items, err := decodeList(payload, "schedule", "items")
	if err != nil {
		return nil, err
	}
	out := make([]ContentScheduleItem, 0, len(items))
	for _, item := range items {
		fields, err := decodeObject(item)
		if err != nil {
			continue
		}
		entry := ContentScheduleItem{
			Day:         stringField(fields, "day"),
			Time:        stringField(fields, "time"),
			Platform:    stringField(fields, "platform"),
			Format:      stringField(fields, "format"),
			ContentIdea: stringField(fields, "contentIdea"),
			Objective:   stringField(fields, "objective"),
		}
		if entry.Day == "" || entry.ContentIdea == "" {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
