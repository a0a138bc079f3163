package content

// Status is the publication state of an article.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Sentinel values substituted for missing data.
const (
	UntitledTitle      = "Untitled"
	UntitledSlug       = "untitled"
	AnonymousAuthor    = "Anonymous"
	UncategorizedName  = "Uncategorized"
	UncategorizedSlug  = "uncategorized"
	PlaceholderImage   = "https://via.placeholder.com/800x450?text=No+Image"
	ExcerptLength      = 150
	ExcerptEllipsis    = "..."
	readingWordsPerMin = 200
)

// Record is a raw content document after field decoding. Every field is
// optional; nil means the source document did not carry a usable value.
// Timestamp fields hold time.Time, a string, or nil.
type Record struct {
	ID          string
	Title       *string
	Slug        *string
	Body        *string
	Excerpt     *string
	CategoryRef *string
	Author      *string
	ImageURL    *string
	Status      *string
	CreatedAt   any
	PublishedAt any
	UpdatedAt   any
	IsFeatured  *bool
	IsTrending  *bool
	IsBreaking  *bool
	ReadCount   *int64
}

// Category is a known article category.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// CategoryRef is the resolved category of an article.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Uncategorized is the category assigned when a reference cannot be resolved.
var Uncategorized = CategoryRef{Name: UncategorizedName, Slug: UncategorizedSlug}

// Article is the fully populated, render-ready view of a content record.
type Article struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Excerpt      string    `json:"excerpt"`
	Body         string    `json:"body"`
	CategoryName string    `json:"category_name"`
	CategorySlug string    `json:"category_slug"`
	Author       string    `json:"author"`
	ImageURL     string    `json:"image_url"`
	Status       Status    `json:"status"`
	CreatedAt    Timestamp `json:"created_at"`
	PublishedAt  Timestamp `json:"published_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
	IsFeatured   bool      `json:"is_featured"`
	IsTrending   bool      `json:"is_trending"`
	IsBreaking   bool      `json:"is_breaking"`
	ReadCount    int64     `json:"read_count"`
}

// IsPublished reports whether the article is publicly visible.
func (a Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// Category returns the resolved category pair.
func (a Article) Category() CategoryRef {
	return CategoryRef{Name: a.CategoryName, Slug: a.CategorySlug}
}
