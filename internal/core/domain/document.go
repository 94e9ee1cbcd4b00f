package domain

// Category is one of the 14 fixed structural tags a document fragment may
// carry. Declared as a closed set, unlike Entity.Type which is discovered at
// runtime.
type Category string

const (
	CategoryHeading1  Category = "heading_1"
	CategoryHeading2  Category = "heading_2"
	CategoryHeading3  Category = "heading_3"
	CategoryParagraph Category = "paragraph"
	CategoryList      Category = "list"
	CategoryTable     Category = "table"
	CategoryFigure    Category = "figure"
	CategoryChart     Category = "chart"
	CategoryEquation  Category = "equation"
	CategoryCaption   Category = "caption"
	CategoryFootnote  Category = "footnote"
	CategoryHeader    Category = "header"
	CategoryFooter    Category = "footer"
	CategoryReference Category = "reference"
)

// Entity is an optional structured annotation attached to a Document. Type
// comes from a closed but runtime-discovered vocabulary; it is never
// hard-coded here.
type Entity struct {
	Type                  string   `json:"type"`
	Title                 string   `json:"title,omitempty"`
	Details               string   `json:"details,omitempty"`
	Keywords              []string `json:"keywords,omitempty"`
	HypotheticalQuestions []string `json:"hypothetical_questions,omitempty"`
}

// Metadata is the structured record every Document carries.
type Metadata struct {
	Source        string   `json:"source"`
	Page          int      `json:"page"`
	Category      Category `json:"category"`
	Caption       string   `json:"caption,omitempty"`
	Entity        *Entity  `json:"entity,omitempty"`
	HumanFeedback string   `json:"human_feedback,omitempty"`
	ImagePath     string   `json:"image_path,omitempty"`
}

// Document is the unit returned by retrieval and consumed by synthesis.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`

	// Derived per-result fields, set by the retriever.
	Similarity  float64 `json:"similarity,omitempty"`
	LexicalRank int     `json:"lexical_rank,omitempty"`
	RRFScore    float64 `json:"rrf_score,omitempty"`
	SearchType  string  `json:"search_type,omitempty"`
}
