package registry

import (
	"testing"
)

const detailSample = `{
	"siren": "552081317",
	"nom_entreprise": "Acme Interim",
	"sigle": "AI",
	"forme_juridique": "SAS",
	"code_naf": "78.20Z",
	"libelle_code_naf": "Activités des agences de travail temporaire",
	"objet_social": "Mise à disposition de personnel pour l'hôtellerie",
	"entreprise_cessee": false,
	"date_creation": "1998-04-01",
	"categorie_entreprise": "PME",
	"siege": {
		"adresse_ligne_1": "1 rue de Rivoli",
		"code_postal": "75001",
		"ville": "Paris",
		"departement": "75",
		"telephone": "+33 1 23 45 67 89"
	},
	"effectif": 42,
	"tranche_effectif": "20 à 49 salariés",
	"finances": [{"chiffre_affaires": 1500000, "resultat": 120000}],
	"enseigne_1": "ACME HOTELLERIE",
	"sites_internet": ["https://acme.example"],
	"conventions_collectives": [{"nom": "Travail temporaire"}],
	"representants": [
		{"nom": "Martin", "prenom": "Claire", "qualite": "Président", "date_de_naissance": "1962-12-31"},
		{"denomination": "Holding SAS", "siren": "123456789", "qualite": "Directeur général"}
	]
}`

func TestBuildCompanyFromDetail(t *testing.T) {
	d, err := parseDoc([]byte(detailSample))
	if err != nil {
		t.Fatal(err)
	}
	c := buildCompany(d, "552081317")

	if c.Name != "Acme Interim" {
		t.Errorf("Name = %q (alias field not read)", c.Name)
	}
	if c.Revenue != 1_500_000 {
		t.Errorf("Revenue = %d, want fallback from finances[0]", c.Revenue)
	}
	if c.Profit != 120_000 {
		t.Errorf("Profit = %d, want fallback from finances[0]", c.Profit)
	}
	if c.City != "Paris" || c.PostalCode != "75001" || c.Department != "75" {
		t.Errorf("head office = %q %q %q", c.City, c.PostalCode, c.Department)
	}
	if c.Phone != "+33 1 23 45 67 89" {
		t.Errorf("Phone = %q", c.Phone)
	}
	if len(c.Signage) != 1 || c.Signage[0] != "ACME HOTELLERIE" {
		t.Errorf("Signage = %v", c.Signage)
	}
	if len(c.Websites) != 1 || c.Websites[0] != "https://acme.example" {
		t.Errorf("Websites = %v", c.Websites)
	}
	if c.Agreement != "Travail temporaire" {
		t.Errorf("Agreement = %q", c.Agreement)
	}
	if len(c.Directors) != 2 {
		t.Fatalf("Directors = %d, want 2", len(c.Directors))
	}
	first := c.Directors[0]
	if first.LastName != "Martin" || first.BirthRaw != "1962-12-31" || first.Role != "Président" {
		t.Errorf("director[0] = %+v", first)
	}
	second := c.Directors[1]
	if second.CorporateSiren != "123456789" || second.CorporateName != "Holding SAS" {
		t.Errorf("director[1] = %+v", second)
	}
}

func TestFieldAliases(t *testing.T) {
	d, err := parseDoc([]byte(`{
		"denomination": "Primary Name",
		"nom_entreprise": "Alias Name",
		"chiffre_affaires": 900,
		"finances": [{"chiffre_affaires": 100}],
		"site_web": "https://legacy.example",
		"representants": [{"nom": "Durand", "fonction": "Gérant", "age": 61}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	c := buildCompany(d, "552081317")

	// The first listed alias wins when both are present.
	if c.Name != "Primary Name" {
		t.Errorf("Name = %q, want the primary field", c.Name)
	}
	if c.Revenue != 900 {
		t.Errorf("Revenue = %d, want the top-level field", c.Revenue)
	}
	if len(c.Websites) != 1 || c.Websites[0] != "https://legacy.example" {
		t.Errorf("Websites = %v, want the legacy single-site field", c.Websites)
	}
	d0 := c.Directors[0]
	if d0.Role != "Gérant" {
		t.Errorf("Role = %q, want the fonction alias", d0.Role)
	}
	// A numeric age still surfaces as the birth field text.
	if d0.BirthRaw != "61" {
		t.Errorf("BirthRaw = %q, want %q", d0.BirthRaw, "61")
	}
}

func TestIdentifierExtraction(t *testing.T) {
	d, err := parseDoc([]byte(`{"siren_formate": "552 081 317"}`))
	if err != nil {
		t.Fatal(err)
	}
	id, ok := d.identifier()
	if !ok || id != "552081317" {
		t.Errorf("identifier = %q, %v; want formatted number normalized", id, ok)
	}

	d, _ = parseDoc([]byte(`{"siren": "12AB3"}`))
	if _, ok := d.identifier(); ok {
		t.Errorf("malformed identifier accepted")
	}
}
