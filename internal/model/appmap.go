package model

// ElementType classifies an interactive element found while crawling
type ElementType string

const (
	ElementButton ElementType = "button"
	ElementLink   ElementType = "link"
	ElementInput  ElementType = "input"
	ElementSelect ElementType = "select"
	ElementForm   ElementType = "form"
)

// InteractiveElement is an element a generated test can act on
type InteractiveElement struct {
	Type    ElementType `json:"type"`
	Locator string      `json:"locator"`
	Text    string      `json:"text,omitempty"`
	Visible bool        `json:"visible"`
}

// CrawledPage is one unique URL visited during a crawl
type CrawledPage struct {
	URL        string               `json:"url"`
	Title      string               `json:"title"`
	Elements   []InteractiveElement `json:"elements"`
	Screenshot string               `json:"screenshot,omitempty"` // base64 PNG thumbnail
}

// FlowPriority ranks inferred user flows
type FlowPriority string

const (
	PriorityCritical FlowPriority = "critical"
	PriorityHigh     FlowPriority = "high"
	PriorityMedium   FlowPriority = "medium"
)

// UserFlow is a user journey inferred from keywords in the crawled pages
type UserFlow struct {
	Name     string       `json:"name"`
	Steps    []string     `json:"steps"`
	Priority FlowPriority `json:"priority"`
}

// InteractionType is the action a discovered element supports
type InteractionType string

const (
	InteractionClick InteractionType = "click"
	InteractionFill  InteractionType = "fill"
)

// Interaction ties an element locator to the page it was found on
type Interaction struct {
	Type    InteractionType `json:"type"`
	Locator string          `json:"locator"`
	PageURL string          `json:"pageUrl"`
	Text    string          `json:"text,omitempty"`
}

// WebsiteMap is the website half of the application map
type WebsiteMap struct {
	BaseURL      string        `json:"baseUrl"`
	Pages        []CrawledPage `json:"pages"`
	UserFlows    []UserFlow    `json:"userFlows"`
	Interactions []Interaction `json:"interactions"`
}

// AuthType is the inferred API authentication scheme
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthNone   AuthType = "none"
)

// EndpointSource records which discovery strategy found an endpoint first
type EndpointSource string

const (
	SourceSpec      EndpointSource = "spec"
	SourceTraffic   EndpointSource = "traffic"
	SourceHeuristic EndpointSource = "heuristic"
)

// Parameter is an API operation parameter
type Parameter struct {
	Name     string `json:"name"`
	In       string `json:"in"` // path, query, header, cookie
	Required bool   `json:"required,omitempty"`
	Schema   any    `json:"schema,omitempty"`
}

// APIEndpoint is a discovered HTTP operation, keyed by method and path
type APIEndpoint struct {
	Path           string         `json:"path"`
	Method         string         `json:"method"`
	Parameters     []Parameter    `json:"parameters,omitempty"`
	RequestBody    any            `json:"requestBody,omitempty"`
	ResponseSchema any            `json:"responseSchema,omitempty"`
	Source         EndpointSource `json:"source,omitempty"`
}

// Key returns the identity key "METHOD:path"
func (e APIEndpoint) Key() string {
	return e.Method + ":" + e.Path
}

// APIMap is the API half of the application map
type APIMap struct {
	BaseURL        string        `json:"baseUrl"`
	Endpoints      []APIEndpoint `json:"endpoints"`
	Authentication AuthType      `json:"authentication"`
}

// ApplicationMap is the combined result of one discovery run.
// It is built once and handed to later stages by value.
type ApplicationMap struct {
	Website *WebsiteMap `json:"website,omitempty"`
	API     *APIMap     `json:"api,omitempty"`
}
