// Package composer renders the curation and classification prompts sent to
// the generation backend.
package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/curador/internal/retrieval"
	"github.com/kalambet/curador/internal/schema"
)

// DefaultExcerptChars bounds the document text placed in a prompt.
const DefaultExcerptChars = 6000

// ContextHeading introduces the retrieval digest in the user prompt.
const ContextHeading = "### EXISTING DATABASE KNOWLEDGE (For Contradiction Check):"

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Composer renders prompts for one partition.
type Composer struct {
	partition    Partition
	excerptChars int
}

// New creates a Composer. If excerptChars <= 0, DefaultExcerptChars is used.
func New(p Partition, excerptChars int) *Composer {
	if excerptChars <= 0 {
		excerptChars = DefaultExcerptChars
	}
	return &Composer{partition: p, excerptChars: excerptChars}
}

// Partition returns the composer's partition.
func (c *Composer) Partition() Partition { return c.partition }

// Compose builds the curation prompt. tag selects the rule set, falling back
// to the partition default. The digest is omitted from the user prompt only
// when no knowledge base is configured.
func (c *Composer) Compose(tag string, target schema.Target, digest retrieval.Digest, excerpt string) Prompt {
	rs := c.partition.RuleSet(tag)
	return Prompt{
		System: systemPrompt(rs, target),
		User:   c.userPrompt(digest, excerpt),
	}
}

func systemPrompt(rs RuleSet, target schema.Target) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Você é um assistente especializado em extração de metadados e curadoria científica de %s (%s).\n\n", rs.Subject, rs.Scope)
	sb.WriteString("Sua Tarefa Principal: Extrair todos os metadados solicitados do texto fornecido e preencher o esquema JSON.\n\n")

	sb.WriteString("**INSTRUÇÕES DE EXTRAÇÃO DE METADADOS (Siga para todos os campos):**\n")
	for _, in := range rs.Instructions {
		fmt.Fprintf(&sb, "- **%s:** %s\n", in.Field, in.Text)
	}

	sb.WriteString("\n**CONTEXTO DE CURADORIA (se aplicável):**\n")
	fmt.Fprintf(&sb, "Se os campos %q e %q estiverem presentes no esquema,\n", schema.ApprovalColumn, schema.FeedbackColumn)
	fmt.Fprintf(&sb, "você TAMBÉM atuará como um Curador Científico especializado em %s, seguindo estes critérios:\n\n", rs.Subject)

	sb.WriteString("**CRITÉRIOS DE VALIDAÇÃO (OBRIGATÓRIOS - TODOS devem ser atendidos para aprovação):**\n")
	for i, cr := range rs.Criteria {
		fmt.Fprintf(&sb, "%d.  %s\n", i+1, cr)
	}

	sb.WriteString("\n**REGRAS DE SAÍDA (Siga rigorosamente):**\n")
	sb.WriteString("1.  Sua saída completa deve ser um único objeto JSON válido, com exatamente as chaves do esquema.\n")
	sb.WriteString("2.  Preencha todos os campos de texto do esquema com base no conteúdo do documento.")
	if rs.FillHint != "" {
		sb.WriteString(" " + rs.FillHint)
	}
	sb.WriteString(" Se um campo não puder ser encontrado ou não for aplicável, deixe vazio.\n")
	sb.WriteString("3.  Se os campos de curadoria estiverem presentes:\n")
	fmt.Fprintf(&sb, "    -   Preencha o campo **'%s'** com a razão explícita para sua decisão:\n", schema.FeedbackColumn)
	fmt.Fprintf(&sb, "        -   Se aprovando: Comece com \"Aprovado:\" e declare a contribuição específica (ex: %q).\n", rs.ApprovalExample)
	sb.WriteString("        -   Se rejeitando: Comece com \"Rejeitado:\" e declare qual critério de validação falhou.\n")
	sb.WriteString("        -   Se o documento contradizer o 'EXISTING DATABASE KNOWLEDGE': Comece com \"Rejeitado (Contradição):\" e cite o fato contradito.\n")
	fmt.Fprintf(&sb, "    -   Defina o campo **'%s'** como `true` ou `false`.\n", schema.ApprovalColumn)
	sb.WriteString("4.  **IDIOMA:** TODOS os valores de string no JSON devem estar em PORTUGUÊS (PT-BR). Não traduza as chaves JSON.\n\n")

	sb.WriteString("ESQUEMA:\n")
	sb.WriteString(target.Skeleton())
	sb.WriteString("\n")
	return sb.String()
}

func (c *Composer) userPrompt(digest retrieval.Digest, excerpt string) string {
	var sb strings.Builder
	sb.WriteString("### TAREFA\n")
	sb.WriteString("1. Analise o TEXTO DE ENTRADA.\n")
	sb.WriteString("2. Compare com o CONHECIMENTO EXISTENTE DO BANCO DE DADOS (se fornecido).\n")
	sb.WriteString("3. Preencha o ESQUEMA JSON ALVO com os metadados extraídos.\n\n")

	if digest.Outcome != retrieval.OutcomeUnconfigured {
		sb.WriteString(ContextHeading + "\n")
		sb.WriteString(strings.TrimRight(digest.Text, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("### TEXTO DE ENTRADA\n'''\n")
	sb.WriteString(truncate(excerpt, c.excerptChars))
	sb.WriteString("\n'''\n\n")
	sb.WriteString("### SAÍDA\nRetorne APENAS o objeto JSON preenchido.")
	return sb.String()
}

// ComposeCategorize builds the classification prompt listing the
// partition's vocabulary.
func (c *Composer) ComposeCategorize(excerpt string) Prompt {
	var sb strings.Builder
	sb.WriteString("Você é um assistente especializado em classificação de artigos científicos agrícolas.\n\n")
	sb.WriteString("Classifique o artigo em UMA das seguintes categorias:\n")
	for i, d := range c.partition.Order {
		fmt.Fprintf(&sb, "%d. **%s** - %s\n", i+1, d, c.partition.RuleSets[d].Description)
	}

	sb.WriteString("\nInstruções:\n")
	sb.WriteString("- Analise o CONTEÚDO PRINCIPAL do artigo\n")
	for _, d := range c.partition.Order {
		fmt.Fprintf(&sb, "- Se o foco principal for %s, retorne %q\n", c.partition.RuleSets[d].Subject, string(d))
	}
	sb.WriteString("- Retorne APENAS o nome exato da categoria")
	if c.lowercaseVocabulary() {
		sb.WriteString(", em minúsculas")
	}
	sb.WriteString("\n\nCategorias válidas:")
	for _, d := range c.partition.Order {
		sb.WriteString("\n- " + string(d))
	}

	return Prompt{
		System: sb.String(),
		User:   "ARTIGO:\n" + truncate(excerpt, c.excerptChars) + "\n\nCLASSIFICAÇÃO:",
	}
}

func (c *Composer) lowercaseVocabulary() bool {
	for _, d := range c.partition.Order {
		if string(d) != strings.ToLower(string(d)) {
			return false
		}
	}
	return true
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
