package domain

// News is a persisted item.
type News struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	OriginalName string   `json:"original_name"`
	Link         string   `json:"link"`
	SourceID     SourceID `json:"source_id"`
	Timestamp    string   `json:"timestamp"`
}

// CandidateItem is one entry discovered by a source adapter that has not yet
// been confirmed new. DisplayName starts equal to OriginalName and may be
// replaced by enrichment.
type CandidateItem struct {
	DisplayName  string
	OriginalName string
	Link         string
	SourceID     SourceID
	Timestamp    string
	PhotoURLs    []string
}

// ToNews converts the candidate into a record ready to be stored.
func (c CandidateItem) ToNews() *News {
	return &News{
		Name:         c.DisplayName,
		OriginalName: c.OriginalName,
		Link:         c.Link,
		SourceID:     c.SourceID,
		Timestamp:    c.Timestamp,
	}
}
