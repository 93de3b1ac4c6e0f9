package models

// Custom types to match PostgreSQL enums
type FieldType string
type DocumentStatus string
type SignerType string
type AuditAction string
type DataSource string

const (
	// Field types
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldNumber   FieldType = "number"

	// Document lifecycle status
	StatusDraft     DocumentStatus = "draft"
	StatusFinalized DocumentStatus = "finalized"
	StatusSent      DocumentStatus = "sent"
	StatusSigned    DocumentStatus = "signed"

	// Signer types
	SignerClient   SignerType = "client"
	SignerInternal SignerType = "internal"

	// Audit actions
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"

	// Field data sources
	SourceNone            DataSource = "none"
	SourceEntityAttribute DataSource = "entity_attribute"
)

// Entity types recorded in the audit trail
const (
	EntityTemplate  = "template"
	EntityCategory  = "template_category"
	EntityDocument  = "document"
	EntitySignature = "signature"
	EntitySession   = "session"
)

var (
	AllFieldTypes     = []FieldType{FieldText, FieldTextarea, FieldCurrency, FieldDate, FieldEmail, FieldPhone, FieldNumber}
	AllDocumentStatus = []DocumentStatus{StatusDraft, StatusFinalized, StatusSent, StatusSigned}
	AllSignerTypes    = []SignerType{SignerClient, SignerInternal}
	AllAuditActions   = []AuditAction{ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout}
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldCurrency, FieldDate, FieldEmail, FieldPhone, FieldNumber:
		return true
	}
	return false
}

// Label is the pt-BR label the admin UI shows for a field type.
func (t FieldType) Label() string {
	switch t {
	case FieldText:
		return "Texto"
	case FieldTextarea:
		return "Texto longo"
	case FieldCurrency:
		return "Moeda"
	case FieldDate:
		return "Data"
	case FieldEmail:
		return "E-mail"
	case FieldPhone:
		return "Telefone"
	case FieldNumber:
		return "Número"
	}
	return string(t)
}

// InputKind is the HTML input type used to capture the field.
func (t FieldType) InputKind() string {
	switch t {
	case FieldTextarea:
		return "textarea"
	case FieldCurrency, FieldNumber:
		return "number"
	case FieldDate:
		return "date"
	case FieldEmail:
		return "email"
	case FieldPhone:
		return "tel"
	case FieldText:
		return "text"
	}
	return "text"
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusFinalized, StatusSent, StatusSigned:
		return true
	}
	return false
}

func (s DocumentStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Rascunho"
	case StatusFinalized:
		return "Finalizado"
	case StatusSent:
		return "Enviado"
	case StatusSigned:
		return "Assinado"
	}
	return string(s)
}

// Tone is the badge style used to render a status.
func (s DocumentStatus) Tone() string {
	switch s {
	case StatusDraft:
		return "neutral"
	case StatusFinalized:
		return "info"
	case StatusSent:
		return "warning"
	case StatusSigned:
		return "success"
	}
	return "neutral"
}

// Terminal reports whether no canonical transition leaves s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusSigned
}

func (s SignerType) Valid() bool {
	switch s {
	case SignerClient, SignerInternal:
		return true
	}
	return false
}

func (s SignerType) Label() string {
	switch s {
	case SignerClient:
		return "Cliente"
	case SignerInternal:
		return "Interno"
	}
	return string(s)
}

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout:
		return true
	}
	return false
}

func (a AuditAction) Label() string {
	switch a {
	case ActionCreate:
		return "Criação"
	case ActionUpdate:
		return "Atualização"
	case ActionDelete:
		return "Exclusão"
	case ActionLogin:
		return "Login"
	case ActionLogout:
		return "Logout"
	}
	return string(a)
}

func (d DataSource) Valid() bool {
	switch d {
	case SourceNone, SourceEntityAttribute, "":
		return true
	}
	return false
}

// Bound reports whether values come from an external entity attribute.
func (d DataSource) Bound() bool {
	return d == SourceEntityAttribute
}
