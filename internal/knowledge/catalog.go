package knowledge

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the fixed product knowledge definition.
type Catalog struct {
	Company     companyProfile   `yaml:"company"`
	MV900       product          `yaml:"mv900"`
	Machine365  product          `yaml:"machine365"`
	Combined    combinedSolution `yaml:"combined"`
	CaseStudies []caseStudy      `yaml:"case_studies"`
}

type companyProfile struct {
	Name     string   `yaml:"name"`
	Location string   `yaml:"location"`
	Stats    []string `yaml:"stats"`
	Contact  struct {
		Email string `yaml:"email"`
		Phone string `yaml:"phone"`
	} `yaml:"contact"`
}

type product struct {
	Name                   string     `yaml:"name"`
	Tagline                string     `yaml:"tagline"`
	Category               string     `yaml:"category"`
	Description            string     `yaml:"description"`
	BestFor                []string   `yaml:"best_for"`
	KeyFeatures            []string   `yaml:"key_features"`
	KeyFunctions           orderedMap `yaml:"key_functions"`
	ExpectedBenefits       []string   `yaml:"expected_benefits"`
	ImplementationBenefits orderedMap `yaml:"implementation_benefits"`
	Specs                  orderedMap `yaml:"specs"`
}

type combinedSolution struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Synergies   []string `yaml:"synergies"`
	Ideal       struct {
		Industry    string     `yaml:"industry"`
		FactorySize string     `yaml:"factory_size"`
		PainPoints  []string   `yaml:"pain_points"`
		TypicalROI  orderedMap `yaml:"typical_roi"`
	} `yaml:"ideal_customer_profile"`
}

type caseStudy struct {
	Title    string   `yaml:"title"`
	Solution string   `yaml:"solution"`
	Result   string   `yaml:"result"`
	Tags     []string `yaml:"tags"`
}

type pair struct{ Key, Value string }

// orderedMap keeps YAML mapping entries in document order. A sequence of
// plain strings decodes with empty keys.
type orderedMap []pair

func (m *orderedMap) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			*m = append(*m, pair{Key: node.Content[i].Value, Value: node.Content[i+1].Value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			*m = append(*m, pair{Value: item.Value})
		}
	default:
		return fmt.Errorf("line %d: expected mapping or sequence", node.Line)
	}
	return nil
}

func (m orderedMap) join(sep string) string {
	parts := make([]string, 0, len(m))
	for _, p := range m {
		if p.Key == "" {
			parts = append(parts, p.Value)
			continue
		}
		parts = append(parts, p.Key+": "+p.Value)
	}
	return strings.Join(parts, sep)
}

// LoadCatalog parses the embedded product catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.Company.Name == "" || c.MV900.Name == "" || c.Machine365.Name == "" {
		return nil, fmt.Errorf("parse catalog: %w: company or product name", domain.ErrMissingRequiredField)
	}
	return &c, nil
}

// ProfileText renders the company profile paragraph.
func (c *Catalog) ProfileText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a South Korean smart manufacturing company based in %s.", c.Company.Name, c.Company.Location)
	for _, s := range c.Company.Stats {
		b.WriteString("\n- " + s)
	}
	fmt.Fprintf(&b, "\n- Contact: %s | %s", c.Company.Contact.Email, c.Company.Contact.Phone)
	return b.String()
}

// ProductChunks splits the catalog into product chunks in a fixed order.
func (c *Catalog) ProductChunks(now time.Time) []domain.KnowledgeChunk {
	mv, m365, combo := c.MV900, c.Machine365, c.Combined

	type def struct{ id, category, text string }
	defs := []def{
		{"company_profile", "company", "3View Company Profile: " + c.ProfileText()},
		{"mv900_overview", "mv900", fmt.Sprintf("%s: %s. %s Category: %s. Best for: %s.",
			mv.Name, mv.Tagline, mv.Description, mv.Category, strings.Join(mv.BestFor, ", "))},
		{"mv900_features", "mv900", mv.Name + " Key Features: " + strings.Join(mv.KeyFeatures, ". ")},
		{"mv900_functions", "mv900", mv.Name + " Key Functions: " + mv.KeyFunctions.join(". ")},
		{"mv900_benefits", "mv900", mv.Name + " Expected Benefits: " + strings.Join(mv.ExpectedBenefits, ". ")},
		{"mv900_specs", "mv900", mv.Name + " Hardware Specifications: " + mv.Specs.join(", ")},
		{"machine365_overview", "machine365", fmt.Sprintf("%s: %s. %s Category: %s. Best for: %s.",
			m365.Name, m365.Tagline, m365.Description, m365.Category, strings.Join(m365.BestFor, ", "))},
		{"machine365_features", "machine365", m365.Name + " Key Features: " + strings.Join(m365.KeyFeatures, ". ")},
		{"machine365_functions", "machine365", m365.Name + " Key Functions: " + m365.KeyFunctions.join(". ")},
		{"machine365_benefits", "machine365", m365.Name + " Implementation Benefits: " + m365.ImplementationBenefits.join(". ")},
		{"combined_solution", "combined", fmt.Sprintf("Combined %s Solution: %s Synergies: %s",
			combo.Name, combo.Description, strings.Join(combo.Synergies, ". "))},
		{"ideal_customer", "sales", fmt.Sprintf("Ideal Customer Profile. Industry: %s. Factory size: %s. Pain points: %s. Typical ROI: %s.",
			combo.Ideal.Industry, combo.Ideal.FactorySize, strings.Join(combo.Ideal.PainPoints, ". "), combo.Ideal.TypicalROI.join(". "))},
	}
	for i, cs := range c.CaseStudies {
		defs = append(defs, def{
			id:       fmt.Sprintf("case_study_%d", i),
			category: "case_study",
			text: fmt.Sprintf("Case Study: %s. Solution: %s. Result: %s. Tags: %s.",
				cs.Title, cs.Solution, cs.Result, strings.Join(cs.Tags, ", ")),
		})
	}

	chunks := make([]domain.KnowledgeChunk, 0, len(defs))
	for _, d := range defs {
		chunk := domain.NewKnowledgeChunk(d.id, d.text, domain.ChunkSourceProduct,
			map[string]string{domain.MetaCategory: d.category}, now)
		chunks = append(chunks, *chunk)
	}
	return chunks
}
