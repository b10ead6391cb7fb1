package model

// Company is the denormalized view of one company as returned by the detail
// endpoint. Every field is optional; absent values stay at their zero value.
type Company struct {
	Siren            string
	Name             string
	Acronym          string
	LegalForm        string
	NAFCode          string
	NAFLabel         string
	Purpose          string
	Signage          []string
	Websites         []string
	Ceased           bool
	CreationDate     string
	CessationDate    string
	Category         string
	Address          string
	PostalCode       string
	City             string
	Department       string
	Headcount        int
	HeadcountBracket string
	Revenue          int64
	RevenueBracket   string
	Profit           int64
	Establishments   int
	ActiveBranches   int
	Agreement        string
	Phone            string
	Email            string
	Directors        []Director
}

// Director is one entry of a company's representatives list. A corporate
// director carries CorporateSiren or CorporateName; a physical person carries
// at least a name or a birth string and neither corporate field.
type Director struct {
	LastName       string
	FirstName      string
	Role           string
	BirthRaw       string
	CorporateSiren string
	CorporateName  string
}
