package registry

import (
	"encoding/json"
	"strconv"
	"strings"

	"sirenscope/internal/csvio"
	"sirenscope/internal/model"
)

// The upstream schemas are only partially stable, so every logical attribute
// is read through an ordered list of candidate paths, first non-empty wins.
// Paths are dotted and may index into arrays ("finances.0.chiffre_affaires").
// New upstream aliases are added to these tables, not to the accessors.
var (
	sirenPaths    = []string{"siren", "siren_formate", "unite_legale.siren"}
	namePaths     = []string{"denomination", "nom_entreprise"}
	creationPaths = []string{"date_creation", "date_creation_entreprise"}
	revenuePaths  = []string{"chiffre_affaires", "finances.0.chiffre_affaires"}
	profitPaths   = []string{"resultat", "finances.0.resultat"}
	websitePaths  = []string{"site_web"}
	phonePaths    = []string{"siege.telephone", "telephone"}

	hintNamePaths  = []string{"nom_entreprise", "nom_complet", "denomination", "unite_legale.denomination"}
	hintSiretPaths = []string{"siret", "siret_formate", "siege.siret", "etablissement.siret"}
	hintCityPaths  = []string{"siege.ville", "ville", "etablissement.ville"}
	hintNAFPaths   = []string{"activite_principale", "unite_legale.activite_principale"}

	directorBirthPaths = []string{"date_de_naissance", "date_naissance", "informations_naissance", "age"}
	directorRolePaths  = []string{"qualite", "fonction"}
	directorNamePaths  = []string{"nom", "nom_dirigeant"}
	directorFirstPaths = []string{"prenom", "prenom_dirigeant"}
)

// doc is a decoded JSON document with path-based defensive accessors.
type doc map[string]any

func parseDoc(body []byte) (doc, error) {
	var d doc
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func lookup(v any, path string) any {
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[part]
		case doc:
			v = node[part]
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			v = node[idx]
		default:
			return nil
		}
	}
	return v
}

// str returns the first non-empty string value among the candidate paths.
// Numeric values are formatted, so an "age" field returned as a number still
// reads as text.
func (d doc) str(paths ...string) string {
	for _, p := range paths {
		switch v := lookup(d, p).(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func (d doc) int64v(paths ...string) int64 {
	for _, p := range paths {
		switch v := lookup(d, p).(type) {
		case float64:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func (d doc) intv(paths ...string) int {
	return int(d.int64v(paths...))
}

func (d doc) boolv(path string) bool {
	b, _ := lookup(d, path).(bool)
	return b
}

func (d doc) list(path string) []doc {
	raw, _ := lookup(d, path).([]any)
	out := make([]doc, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, doc(m))
		}
	}
	return out
}

func (d doc) strList(path string) []string {
	raw, _ := lookup(d, path).([]any)
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// identifier extracts a 9-digit registration number from a search result,
// stripping formatting characters.
func (d doc) identifier() (string, bool) {
	return csvio.NormalizeIdentifier(d.str(sirenPaths...))
}

// buildCompany maps a detail document onto the internal record.
func buildCompany(d doc, siren string) *model.Company {
	c := &model.Company{
		Siren:            siren,
		Name:             d.str(namePaths...),
		Acronym:          d.str("sigle"),
		LegalForm:        d.str("forme_juridique"),
		NAFCode:          d.str("code_naf"),
		NAFLabel:         d.str("libelle_code_naf"),
		Purpose:          d.str("objet_social"),
		Ceased:           d.boolv("entreprise_cessee"),
		CreationDate:     d.str(creationPaths...),
		CessationDate:    d.str("date_cessation"),
		Category:         d.str("categorie_entreprise"),
		Address:          d.str("siege.adresse_ligne_1"),
		PostalCode:       d.str("siege.code_postal"),
		City:             d.str("siege.ville"),
		Department:       d.str("siege.departement"),
		Headcount:        d.intv("effectif"),
		HeadcountBracket: d.str("tranche_effectif"),
		Revenue:          d.int64v(revenuePaths...),
		RevenueBracket:   d.str("tranche_chiffre_affaires"),
		Profit:           d.int64v(profitPaths...),
		Establishments:   d.intv("nombre_etablissements"),
		ActiveBranches:   d.intv("nombre_etablissements_ouverts"),
		Phone:            d.str(phonePaths...),
		Email:            d.str("email"),
	}

	for _, key := range []string{"enseigne_1", "enseigne_2", "enseigne_3"} {
		if s := d.str(key); s != "" {
			c.Signage = append(c.Signage, s)
		}
	}

	c.Websites = d.strList("sites_internet")
	if len(c.Websites) == 0 {
		if s := d.str(websitePaths...); s != "" {
			c.Websites = []string{s}
		}
	}

	if agreements := d.list("conventions_collectives"); len(agreements) > 0 {
		c.Agreement = agreements[0].str("nom")
	}

	for _, rep := range d.list("representants") {
		c.Directors = append(c.Directors, model.Director{
			LastName:       rep.str(directorNamePaths...),
			FirstName:      rep.str(directorFirstPaths...),
			Role:           rep.str(directorRolePaths...),
			BirthRaw:       rep.str(directorBirthPaths...),
			CorporateSiren: rep.str("siren"),
			CorporateName:  rep.str("denomination"),
		})
	}

	return c
}
