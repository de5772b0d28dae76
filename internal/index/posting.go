package index

// Posting records one term's occurrences in one record. Doc is the record's
// insertion position in the store, Frequency counts occurrences across title
// and text, and TitleFrequency counts the title share of them.
type Posting struct {
	Doc            int
	Location       string
	Frequency      int
	TitleFrequency int
	Positions      []int
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

type Stats struct {
	Records      int     `json:"records"`
	Terms        int     `json:"terms"`
	Postings     int     `json:"postings"`
	AvgDocLength float64 `json:"avg_doc_length"`
}
