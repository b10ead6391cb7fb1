// Package filter reduces detail records to output rows according to the
// business rules shared by every export mode: company-level bounds, the
// director birth cutoff, role matching and the physical-person test.
package filter

import (
	"strconv"

	"sirenscope/internal/dates"
	"sirenscope/internal/export"
	"sirenscope/internal/model"
)

// Mode selects the output cardinality.
type Mode string

const (
	// ModeDirectors emits one row per matching director.
	ModeDirectors Mode = "directors"
	// ModeCompanies emits one row per company.
	ModeCompanies Mode = "companies"
)

// Spec is the composed filter. Zero values mean "no restriction".
type Spec struct {
	IncludeCeased bool
	MinRevenue    int64
	MaxRevenue    int64
	MinHeadcount  int
	MaxHeadcount  int
	Cities        []string
	Cutoff        *dates.PartialDate
	Role          string
	Mode          Mode
}

// DirectorColumns is the stable header of director-centric exports.
var DirectorColumns = []string{
	"siren", "denomination", "code_naf", "libelle_code_naf", "ville_siege",
	"code_postal", "entreprise_cessee", "date_creation", "forme_juridique",
	"tranche_ca", "tranche_effectif", "chiffre_affaires", "effectif",
	"dir_nom", "dir_prenom", "dir_qualite", "dir_date_naissance", "dir_age_actuel",
}

// CompanyColumns is the stable header of company-centric exports.
var CompanyColumns = []string{
	"siren", "denomination", "sigle", "forme_juridique", "code_naf",
	"libelle_code_naf", "effectif", "tranche_effectif", "date_creation",
	"date_cessation", "entreprise_cessee", "categorie_entreprise",
	"adresse_siege", "code_postal_siege", "ville_siege", "departement_siege",
	"chiffre_affaires", "resultat", "nb_etablissements", "nb_etablissements_actifs",
	"convention_collective", "site_web", "telephone", "email",
}

// Columns returns the header matching the configured mode.
func (s Spec) Columns() []string {
	if s.Mode == ModeCompanies {
		return CompanyColumns
	}
	return DirectorColumns
}

// IsPhysicalPerson reports whether a director entry denotes an individual:
// no nested corporate identifier or name, and at least one of last name,
// first name, or a birth field.
func IsPhysicalPerson(d model.Director) bool {
	if d.CorporateSiren != "" || d.CorporateName != "" {
		return false
	}
	return d.LastName != "" || d.FirstName != "" || d.BirthRaw != ""
}

// CompanyPasses applies the company-level predicates. Bounds of zero are
// unbounded on that side.
func (s Spec) CompanyPasses(c *model.Company) bool {
	if !s.IncludeCeased && c.Ceased {
		return false
	}
	if s.MinRevenue > 0 && c.Revenue < s.MinRevenue {
		return false
	}
	if s.MaxRevenue > 0 && c.Revenue > s.MaxRevenue {
		return false
	}
	if s.MinHeadcount > 0 && c.Headcount < s.MinHeadcount {
		return false
	}
	if s.MaxHeadcount > 0 && c.Headcount > s.MaxHeadcount {
		return false
	}
	if len(s.Cities) > 0 {
		city := Normalize(c.City)
		found := false
		for _, allowed := range s.Cities {
			if Normalize(allowed) == city {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// directorPasses applies the director-level predicates. Under a cutoff, a
// director whose birth field cannot be parsed carries no information and is
// excluded; without a cutoff (list-all) such directors are kept.
func (s Spec) directorPasses(d model.Director) bool {
	if !IsPhysicalPerson(d) {
		return false
	}
	if s.Role != "" && Normalize(d.Role) != Normalize(s.Role) {
		return false
	}
	if s.Cutoff != nil {
		dob := dates.Parse(d.BirthRaw)
		if dob == nil {
			return false
		}
		if dates.Compare(*dob, *s.Cutoff) >= 0 {
			return false
		}
	}
	return true
}

// Apply reduces one detail record to zero or more output rows.
func (s Spec) Apply(c *model.Company) []export.Row {
	if !s.CompanyPasses(c) {
		return nil
	}
	if s.Mode == ModeCompanies {
		return []export.Row{companyRow(c)}
	}

	var rows []export.Row
	for _, d := range c.Directors {
		if !s.directorPasses(d) {
			continue
		}
		rows = append(rows, directorRow(c, d))
	}
	return rows
}

func ceasedLabel(ceased bool) string {
	if ceased {
		return "oui"
	}
	return "non"
}

func directorRow(c *model.Company, d model.Director) export.Row {
	age := ""
	if dob := dates.Parse(d.BirthRaw); dob != nil && dob.Year > 0 {
		age = strconv.Itoa(dates.AgeAt(*dob, dates.Today()))
	}
	return export.Row{
		"siren":              c.Siren,
		"denomination":       c.Name,
		"code_naf":           c.NAFCode,
		"libelle_code_naf":   c.NAFLabel,
		"ville_siege":        c.City,
		"code_postal":        c.PostalCode,
		"entreprise_cessee":  ceasedLabel(c.Ceased),
		"date_creation":      c.CreationDate,
		"forme_juridique":    c.LegalForm,
		"tranche_ca":         c.RevenueBracket,
		"tranche_effectif":   c.HeadcountBracket,
		"chiffre_affaires":   strconv.FormatInt(c.Revenue, 10),
		"effectif":           strconv.Itoa(c.Headcount),
		"dir_nom":            d.LastName,
		"dir_prenom":         d.FirstName,
		"dir_qualite":        d.Role,
		"dir_date_naissance": d.BirthRaw,
		"dir_age_actuel":     age,
	}
}

func blankIfZero(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func companyRow(c *model.Company) export.Row {
	site := ""
	if len(c.Websites) > 0 {
		site = c.Websites[0]
	}
	return export.Row{
		"siren":                    c.Siren,
		"denomination":             c.Name,
		"sigle":                    c.Acronym,
		"forme_juridique":          c.LegalForm,
		"code_naf":                 c.NAFCode,
		"libelle_code_naf":         c.NAFLabel,
		"effectif":                 blankIfZero(int64(c.Headcount)),
		"tranche_effectif":         c.HeadcountBracket,
		"date_creation":            c.CreationDate,
		"date_cessation":           c.CessationDate,
		"entreprise_cessee":        ceasedLabel(c.Ceased),
		"categorie_entreprise":     c.Category,
		"adresse_siege":            c.Address,
		"code_postal_siege":        c.PostalCode,
		"ville_siege":              c.City,
		"departement_siege":        c.Department,
		"chiffre_affaires":         blankIfZero(c.Revenue),
		"resultat":                 blankIfZero(c.Profit),
		"nb_etablissements":        blankIfZero(int64(c.Establishments)),
		"nb_etablissements_actifs": blankIfZero(int64(c.ActiveBranches)),
		"convention_collective":    c.Agreement,
		"site_web":                 site,
		"telephone":                c.Phone,
		"email":                    c.Email,
	}
}
