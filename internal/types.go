package internal

// Grid is a decoded sheet: ordered rows of ordered string cells.
type Grid [][]string

type ReportType string

const (
	ReportCQGFillReport ReportType = "cqg-fill-report"
)

var ReportTypes = []ReportType{ReportCQGFillReport}

type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// OutputHeader is the column layout the journaling service imports.
var OutputHeader = []string{"Date", "Time", "Symbol", "Quantity", "Price", "Side"}

type InputKind string

const (
	InputXLSX InputKind = "xlsx"
	InputHTML InputKind = "html"
	InputEML  InputKind = "eml"
)

type EmailStatus string

const (
	EmailFetched   EmailStatus = "fetched"
	EmailConverted EmailStatus = "converted"
	EmailSkipped   EmailStatus = "skipped"
	EmailFailed    EmailStatus = "failed"
)

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     EmailStatus
	RawRef     string
}

type ConversionRow struct {
	ID         int
	TraceID    string
	EmailID    *int
	ReportType ReportType
	InputPath  string
	OutputPath string
	Rows       int
	DurationMs int64
	Error      *string
	CreatedAt  string
}
