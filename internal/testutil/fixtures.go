package testutil

import (
	"context"
	"testing"

	"docsign/internal/models"
)

// QuoteBody is a small quote template used across package tests.
const QuoteBody = `<h1>Orçamento</h1>
<p>Cliente: {{cliente_nome}}</p>
<p>Data: {{data}}</p>
<p>Valor total: {{valor_total}}</p>
<p>{{observacoes}}</p>`

// QuoteFields matches QuoteBody.
func QuoteFields() []models.TemplateField {
	return []models.TemplateField{
		{Name: "cliente_nome", Label: "Cliente", Type: models.FieldText, Required: true, Position: 0,
			DataSource: models.SourceEntityAttribute, SourceAttribute: "name"},
		{Name: "data", Label: "Data", Type: models.FieldDate, Position: 1},
		{Name: "valor_total", Label: "Valor total", Type: models.FieldCurrency, Required: true, Position: 2},
		{Name: "observacoes", Label: "Observações", Type: models.FieldTextarea, Position: 3, DefaultValue: "Validade: 15 dias"},
	}
}

// CreateQuoteTemplate stores the "Orçamento" template with its fields.
func CreateQuoteTemplate(tb testing.TB, db *models.DB) *models.Template {
	tb.Helper()
	tmpl := &models.Template{
		Name:     "Orçamento",
		Body:     QuoteBody,
		IsActive: true,
		Fields:   QuoteFields(),
	}
	if err := db.Templates.Create(context.Background(), tmpl); err != nil {
		tb.Fatalf("create template: %v", err)
	}
	return tmpl
}
