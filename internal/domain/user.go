package domain

import "time"

// Claves de preferencias conocidas y sus valores por defecto.
const (
	PreferenceTheme    = "theme"
	PreferenceLanguage = "language"

	DefaultTheme    = "light"
	DefaultLanguage = "en"
)

type User struct {
	ID          string            `json:"id" bson:"_id"`
	FederatedID string            `json:"-" bson:"federated_id"`
	Email       string            `json:"email,omitempty" bson:"email,omitempty"`
	DisplayName string            `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Preferences map[string]string `json:"preferences" bson:"preferences"`
	Transcripts []SessionRecord   `json:"transcripts" bson:"transcripts"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
}

// SessionRecord guarda un intercambio (mensaje del usuario + respuesta) con su fecha.
type SessionRecord struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Exchange  []string  `json:"exchange" bson:"exchange"`
}

// Theme devuelve la preferencia de tema o el valor por defecto.
func (u User) Theme() string {
	return u.preference(PreferenceTheme, DefaultTheme)
}

// Language devuelve la preferencia de idioma o el valor por defecto.
func (u User) Language() string {
	return u.preference(PreferenceLanguage, DefaultLanguage)
}

func (u User) preference(key, fallback string) string {
	if v, ok := u.Preferences[key]; ok && v != "" {
		return v
	}
	return fallback
}

// DefaultPreferences devuelve una copia nueva de las preferencias iniciales.
func DefaultPreferences() map[string]string {
	return map[string]string{
		PreferenceTheme:    DefaultTheme,
		PreferenceLanguage: DefaultLanguage,
	}
}

// NewUser contiene los datos necesarios para crear un usuario en el primer login.
type NewUser struct {
	FederatedID string
	Email       string
	DisplayName string
}

// UserPatch describe una actualizacion parcial: nil o ausente significa "no tocar".
type UserPatch struct {
	Email       *string
	DisplayName *string
	Preferences map[string]string
}

// IsEmpty indica si el patch no modifica ningun campo.
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.DisplayName == nil && len(p.Preferences) == 0
}
