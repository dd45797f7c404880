package composer

import (
	"fmt"
	"sort"
	"strings"
)

// Domain tags a rule set within a partition. Tags are matched exactly, so
// they are written the way callers send them.
type Domain string

// Agro partition tags.
const (
	DomainSolos       Domain = "solos"
	DomainCitrosECana Domain = "citros e cana"
)

// Bioinsumos partition tags.
const (
	DomainBioinsumos   Domain = "BIOINSUMOS"
	DomainCitricultura Domain = "MANEJO ECOFISIOLÓGICO E NUTRICIONAL DA CITRICULTURA DE ALTA PERFORMANCE"
)

// FieldInstruction tells the model how to fill one schema field.
type FieldInstruction struct {
	Field string
	Text  string
}

// TextCue is a term searched case-insensitively in the first Within
// characters of a document. Within <= 0 searches the whole text.
type TextCue struct {
	Term   string
	Within int
}

// RuleSet is the domain-specific part of a curation prompt.
type RuleSet struct {
	Tag Domain
	// Subject is the upper-cased area of expertise, e.g. "SOLOS".
	Subject string
	// Scope expands Subject in the opening sentence.
	Scope        string
	Instructions []FieldInstruction
	// FillHint is appended to the fill-every-field output rule when set.
	FillHint string
	// Criteria are the validation criteria, all of which must hold for approval.
	Criteria []string
	// ApprovalExample illustrates an "Aprovado:" rationale.
	ApprovalExample string
	// Keywords map a free-form classification answer back to Tag.
	Keywords []string
	// TextCues pick Tag from the document itself when the answer matched no
	// keyword of any rule set.
	TextCues []TextCue
	// Description is shown to the model when classifying.
	Description string
}

// Partition is the closed vocabulary of one deployment.
type Partition struct {
	Name     string
	Default  Domain
	RuleSets map[Domain]RuleSet
	// Order is the classification and keyword matching order.
	Order []Domain
}

// RuleSet returns the rule set for tag, falling back to the partition
// default for unknown or empty tags. Lookup is case-sensitive.
func (p Partition) RuleSet(tag string) RuleSet {
	if rs, ok := p.RuleSets[Domain(tag)]; ok {
		return rs
	}
	return p.RuleSets[p.Default]
}

// Has reports whether tag names a rule set of the partition.
func (p Partition) Has(tag string) bool {
	_, ok := p.RuleSets[Domain(tag)]
	return ok
}

// WithDefault returns a copy of p whose default tag is d. It fails when d
// is not part of the partition.
func (p Partition) WithDefault(d Domain) (Partition, error) {
	if _, ok := p.RuleSets[d]; !ok {
		return p, fmt.Errorf("domain %q is not part of partition %q", d, p.Name)
	}
	p.Default = d
	return p, nil
}

// MatchCategory maps a model's classification answer to a tag. Keywords of
// each rule set are matched case-insensitively as substrings, in Order;
// unmatched answers resolve to the default tag.
func (p Partition) MatchCategory(raw string) Domain {
	if d, ok := p.matchAnswer(raw); ok {
		return d
	}
	return p.Default
}

// InferCategory is MatchCategory with a second pass: an unmatched answer is
// resolved from the rule sets' TextCues against the document text before
// falling back to the default tag.
func (p Partition) InferCategory(raw, text string) Domain {
	if d, ok := p.matchAnswer(raw); ok {
		return d
	}
	lower := strings.ToLower(text)
	for _, d := range p.Order {
		for _, cue := range p.RuleSets[d].TextCues {
			scope := lower
			if cue.Within > 0 {
				scope = truncate(lower, cue.Within)
			}
			if strings.Contains(scope, strings.ToLower(cue.Term)) {
				return d
			}
		}
	}
	return p.Default
}

func (p Partition) matchAnswer(raw string) (Domain, bool) {
	answer := strings.ToLower(strings.TrimSpace(raw))
	if answer == "" {
		return "", false
	}
	for _, d := range p.Order {
		for _, kw := range p.RuleSets[d].Keywords {
			if strings.Contains(answer, strings.ToLower(kw)) {
				return d, true
			}
		}
	}
	return "", false
}

// Partition names accepted by PartitionByName.
const (
	PartitionAgro       = "agro"
	PartitionBioinsumos = "bioinsumos"
)

// PartitionByName resolves a configured partition name.
func PartitionByName(name string) (Partition, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PartitionAgro:
		return Agro(), nil
	case PartitionBioinsumos:
		return Bioinsumos(), nil
	}
	return Partition{}, fmt.Errorf("unknown partition %q (valid: %s)", name, strings.Join(PartitionNames(), ", "))
}

// PartitionNames lists the shipped partitions.
func PartitionNames() []string {
	names := []string{PartitionAgro, PartitionBioinsumos}
	sort.Strings(names)
	return names
}

const (
	fieldSubtitle   = "Subtítulo"
	fieldRegion     = "Caracteristicas do solo e região (escrever)"
	fieldTools      = "ferramentas e técnicas (seleção)"
	fieldNutrients  = "nutrientes (seleção)"
	fieldStrategies = "estratégias de fornecimento de nutrientes (seleção)"
	fieldGroups     = "grupos de culturas (seleção)"
	fieldCrops      = "culturas presentes (seleção)"
)

const (
	criterionFormat      = "**Formato:** Deve ser um artigo científico, tese ou estudo de caso detalhado com Metodologia e Resultados claros."
	criterionConsistency = "**Consistência:** Não deve contradizer fatos do 'EXISTING DATABASE KNOWLEDGE'."
)

// Agro is the soils / citrus and sugarcane partition.
func Agro() Partition {
	solos := RuleSet{
		Tag:     DomainSolos,
		Subject: "SOLOS",
		Scope:   "pedologia, física, química e biologia do solo",
		Instructions: []FieldInstruction{
			{fieldSubtitle, "Extraia o subtítulo do artigo, se houver."},
			{fieldRegion, "Descreva em um parágrafo as características do solo, clima e localização geográfica mencionadas no estudo. Se não mencionadas, deixe vazio."},
			{fieldTools, `Liste as metodologias científicas, ferramentas de laboratório ou campo. Ex: "Análise granulométrica, Espectroscopia, Difração de Raios-X, Amostragem de solo". Sempre liste pelo menos uma se aplicável.`},
			{fieldNutrients, `Liste os nutrientes, minerais ou elementos químicos foco do estudo do solo. Ex: "Nitrogênio, Fósforo, Carbono orgânico, Silício". Sempre liste pelo menos um se aplicável.`},
			{fieldStrategies, `Liste o modo de correção ou fertilização do solo. Ex: "Calagem, Gessagem, Adubação de base, Incorporação de resíduos". Sempre liste pelo menos uma se aplicável.`},
			{fieldGroups, "Liste os grandes grupos de culturas agrícolas investigados no solo. Sempre liste pelo menos um se aplicável."},
			{fieldCrops, "Liste os nomes específicos das culturas ou plantas estudadas. Sempre liste pelo menos uma se aplicável."},
		},
		FillHint: "Garanta que os campos específicos (Caracteristicas do solo e região, ferramentas e técnicas, nutrientes, estratégias de fornecimento de nutrientes, grupos de culturas, culturas presentes) sejam sempre respondidos com informações relevantes, inferindo do contexto se necessário.",
		Criteria: []string{
			"**Tópico Principal:** O FOCO PRINCIPAL do artigo deve ser o estudo do SOLO (manejo, conservação, fertilidade, física ou biologia do solo).\n    -   *REJEITAR* se o foco for puramente genética vegetal ou processamento industrial sem foco no solo.",
			criterionFormat,
			criterionConsistency,
		},
		ApprovalExample: "Aprovado: Avalia a compactação do solo sob diferentes sistemas de plantio.",
		Keywords:        []string{"solo", "pedologia"},
		TextCues:        []TextCue{{Term: "solo", Within: 2000}, {Term: "pedologia"}},
		Description:     "Artigos sobre pedologia, física do solo, química do solo, biologia do solo, manejo e conservação do solo, fertilidade do solo, nutrição de plantas via solo",
	}
	citros := RuleSet{
		Tag:     DomainCitrosECana,
		Subject: "CITROS E CANA",
		Scope:   "cultivo e manejo de citricultura e cana-de-açúcar",
		Instructions: []FieldInstruction{
			{fieldSubtitle, "Extraia o subtítulo do artigo, se houver."},
			{fieldRegion, "Descreva em um parágrafo as características do solo, clima e localização geográfica mencionadas no estudo de citros ou cana. Se não mencionadas, deixe vazio."},
			{fieldTools, `Liste, em formato de string separada por vírgulas, as principais ferramentas, equipamentos e metodologias científicas utilizadas. Ex: "Cromatografia gasosa, Fotossíntese líquida, RCBD, ANOVA". Sempre liste pelo menos uma se aplicável.`},
			{fieldNutrients, `Liste, em formato de string separada por vírgulas, todos os nutrientes ou compostos que são foco do estudo. Ex: "Nitrogênio, Potássio, Sacarose, Ácidos orgânicos". Sempre liste pelo menos um se aplicável.`},
			{fieldStrategies, `Liste, em formato de string separada por vírgulas, as estratégias de fertilização ou manejo. Ex: "Fertirrigação, Aplicação foliar, Controle de pragas, Poda". Sempre liste pelo menos uma se aplicável.`},
			{fieldGroups, `Liste "Frutíferas" para citros ou "Grandes Culturas" para cana, conforme o caso.`},
			{fieldCrops, "Liste os nomes específicos das culturas estudadas (ex: Laranja Hamlin, Cana-de-açúcar RB867515). Sempre liste pelo menos uma se aplicável."},
		},
		Criteria: []string{
			"**Tópico Principal:** O FOCO PRINCIPAL do artigo deve ser CITROS (laranja, limão, tangerina, etc.) ou CANA-DE-AÇÚCAR (produção, manejo, doenças, nutrição).\n    -   *REJEITAR* se o tópico for outras culturas sem relação com citros ou cana.",
			criterionFormat,
			criterionConsistency,
		},
		ApprovalExample: "Aprovado: Detalha a resposta da cana-de-açúcar à adubação nitrogenada.",
		Keywords:        []string{"citro", "cana"},
		Description:     "Artigos sobre cultivo, manejo, nutrição e fisiologia de citros (laranja, limão, tangerina) ou cana-de-açúcar",
	}
	return Partition{
		Name:    PartitionAgro,
		Default: DomainCitrosECana,
		RuleSets: map[Domain]RuleSet{
			DomainSolos:       solos,
			DomainCitrosECana: citros,
		},
		Order: []Domain{DomainSolos, DomainCitrosECana},
	}
}

// Bioinsumos is the biological inputs / high-performance citriculture partition.
func Bioinsumos() Partition {
	bio := RuleSet{
		Tag:     DomainBioinsumos,
		Subject: "BIOINSUMOS",
		Scope:   "inoculantes, biofertilizantes, bioestimulantes e controle biológico",
		Instructions: []FieldInstruction{
			{fieldSubtitle, "Extraia o subtítulo do artigo, se houver."},
			{fieldRegion, "Descreva em um parágrafo as características do solo, clima e localização geográfica onde o bioinsumo foi avaliado. Se não mencionadas, deixe vazio."},
			{fieldTools, `Liste, em formato de string separada por vírgulas, as metodologias e técnicas utilizadas. Ex: "Contagem de UFC, PCR, Ensaio em casa de vegetação, ANOVA". Sempre liste pelo menos uma se aplicável.`},
			{fieldNutrients, `Liste, em formato de string separada por vírgulas, os nutrientes ou compostos cuja disponibilidade o bioinsumo altera. Ex: "Nitrogênio, Fósforo solubilizado, Fitormônios". Sempre liste pelo menos um se aplicável.`},
			{fieldStrategies, `Liste, em formato de string separada por vírgulas, o modo de aplicação do bioinsumo. Ex: "Inoculação de sementes, Aplicação no sulco, Pulverização foliar". Sempre liste pelo menos uma se aplicável.`},
			{fieldGroups, "Liste os grandes grupos de culturas que receberam o bioinsumo. Sempre liste pelo menos um se aplicável."},
			{fieldCrops, "Liste os nomes específicos das culturas estudadas. Sempre liste pelo menos uma se aplicável."},
		},
		Criteria: []string{
			"**Tópico Principal:** O FOCO PRINCIPAL do artigo deve ser um BIOINSUMO (microrganismos, inoculantes, biofertilizantes, bioestimulantes ou agentes de controle biológico) aplicado à agricultura.\n    -   *REJEITAR* se o foco for insumos exclusivamente químicos ou sintéticos.",
			criterionFormat,
			criterionConsistency,
		},
		ApprovalExample: "Aprovado: Quantifica o ganho de produtividade da soja inoculada com Bradyrhizobium.",
		Keywords:        []string{"bioinsumo", "inoculante", "biológic"},
		Description:     "Artigos sobre inoculantes, biofertilizantes, bioestimulantes e controle biológico na agricultura",
	}
	citri := RuleSet{
		Tag:     DomainCitricultura,
		Subject: "CITRICULTURA DE ALTA PERFORMANCE",
		Scope:   "manejo ecofisiológico e nutricional de pomares cítricos",
		Instructions: []FieldInstruction{
			{fieldSubtitle, "Extraia o subtítulo do artigo, se houver."},
			{fieldRegion, "Descreva em um parágrafo as características do solo, clima e localização geográfica dos pomares estudados. Se não mencionadas, deixe vazio."},
			{fieldTools, `Liste, em formato de string separada por vírgulas, as ferramentas e metodologias utilizadas. Ex: "Análise foliar, Trocas gasosas, Potencial hídrico, ANOVA". Sempre liste pelo menos uma se aplicável.`},
			{fieldNutrients, `Liste, em formato de string separada por vírgulas, os nutrientes foco do estudo. Ex: "Nitrogênio, Potássio, Boro, Zinco". Sempre liste pelo menos um se aplicável.`},
			{fieldStrategies, `Liste, em formato de string separada por vírgulas, as estratégias de fornecimento de nutrientes ou de manejo. Ex: "Fertirrigação, Aplicação foliar, Adubação parcelada". Sempre liste pelo menos uma se aplicável.`},
			{fieldGroups, `Liste "Frutíferas".`},
			{fieldCrops, "Liste as variedades e porta-enxertos estudados (ex: Laranja Valência sobre Citrumelo Swingle). Sempre liste pelo menos uma se aplicável."},
		},
		Criteria: []string{
			"**Tópico Principal:** O FOCO PRINCIPAL do artigo deve ser a ECOFISIOLOGIA ou a NUTRIÇÃO de CITROS (fotossíntese, estresse hídrico, adubação, produtividade).\n    -   *REJEITAR* se o tópico for outras culturas ou apenas pós-colheita e processamento industrial.",
			criterionFormat,
			criterionConsistency,
		},
		ApprovalExample: "Aprovado: Relaciona doses de potássio à produtividade de laranjeiras irrigadas.",
		Keywords:        []string{"citri", "citro", "manejo ecofisiol"},
		Description:     "Artigos sobre ecofisiologia, nutrição e manejo de pomares cítricos de alta produtividade",
	}
	return Partition{
		Name:    PartitionBioinsumos,
		Default: DomainBioinsumos,
		RuleSets: map[Domain]RuleSet{
			DomainBioinsumos:   bio,
			DomainCitricultura: citri,
		},
		Order: []Domain{DomainCitricultura, DomainBioinsumos},
	}
}
