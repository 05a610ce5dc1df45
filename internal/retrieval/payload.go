package retrieval

import "encoding/json"

// searchPayload mirrors the structured body of a search response.
type searchPayload struct {
	Records     []searchRecord `json:"records"`
	RecordCount int            `json:"recordCount"`
	NextStart   string         `json:"nextStart"`
}

type searchRecord struct {
	Publication struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	} `json:"publication"`
	Page struct {
		ID         string      `json:"id"`
		PageNumber json.Number `json:"pageNumber"`
		Date       string      `json:"date"`
		ViewerURL  string      `json:"viewerUrl"`
	} `json:"page"`
}

// parseSearchPayload decodes the response text. A body that is not the
// expected JSON shape is an absence of result data, which the remote
// service is known to produce transiently.
func parseSearchPayload(text []byte) (*searchPayload, error) {
	var payload searchPayload
	if err := json.Unmarshal(text, &payload); err != nil {
		return nil, WrapError(KindRetryable, "response is not a search payload", err)
	}
	return &payload, nil
}

// rawRecords converts the wire records into the pipeline's own shape.
func (p *searchPayload) rawRecords() []RawRecord {
	out := make([]RawRecord, 0, len(p.Records))
	for _, rec := range p.Records {
		out = append(out, RawRecord{
			PublicationName: rec.Publication.Name,
			PageID:          rec.Page.ID,
			PageNumber:      rec.Page.PageNumber.String(),
			Date:            rec.Page.Date,
			Location:        rec.Publication.Location,
			ViewerURL:       rec.Page.ViewerURL,
		})
	}
	return out
}
