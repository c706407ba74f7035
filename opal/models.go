package opal

import "strings"

// Datasource is a project's data container. Each of its tables becomes a
// relational table.
type Datasource struct {
	Name  string   `json:"name"`
	Type  string   `json:"type,omitempty"`
	Table []string `json:"table,omitempty"`
	View  []string `json:"view,omitempty"`
}

// GeneralConf is the server-wide configuration; only the display languages
// are consumed.
type GeneralConf struct {
	Name           string   `json:"name"`
	Languages      []string `json:"languages"`
	DefaultCharSet string   `json:"defaultCharSet,omitempty"`
}

// Attribute is a variable or category annotation. Namespace and Locale are
// empty when absent from the payload.
type Attribute struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Locale    string `json:"locale,omitempty"`
	Value     string `json:"value"`
}

// Is reports whether the attribute has exactly this namespace, name and locale.
func (a Attribute) Is(namespace, name, locale string) bool {
	return a.Namespace == namespace && a.Name == name && a.Locale == locale
}

type Category struct {
	Name       string      `json:"name"`
	IsMissing  bool        `json:"isMissing"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Variable describes one field of a value table.
type Variable struct {
	Name                 string      `json:"name"`
	EntityType           string      `json:"entityType"`
	ValueType            string      `json:"valueType"`
	IsRepeatable         bool        `json:"isRepeatable"`
	OccurrenceGroup      string      `json:"occurrenceGroup,omitempty"`
	MimeType             string      `json:"mimeType,omitempty"`
	ReferencedEntityType string      `json:"referencedEntityType,omitempty"`
	Unit                 string      `json:"unit,omitempty"`
	Index                int         `json:"index"`
	Categories           []Category  `json:"categories,omitempty"`
	Attributes           []Attribute `json:"attributes,omitempty"`
}

// AttributeValue returns the value of the first matching attribute.
func (v *Variable) AttributeValue(namespace, name, locale string) (string, bool) {
	for _, attr := range v.Attributes {
		if attr.Is(namespace, name, locale) {
			return attr.Value, true
		}
	}
	return "", false
}

// CategoryNames returns the category names in declaration order.
func (v *Variable) CategoryNames() []string {
	names := make([]string, 0, len(v.Categories))
	for _, c := range v.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Value is one cell of a value set: either a scalar or, for repeatable
// variables, a sequence of scalars.
type Value struct {
	Value  string  `json:"value,omitempty"`
	Values []Value `json:"values,omitempty"`
}

// String renders the value; sequences are comma-joined.
func (v Value) String() string {
	if len(v.Values) == 0 {
		return v.Value
	}
	parts := make([]string, len(v.Values))
	for i, item := range v.Values {
		parts[i] = item.String()
	}
	return strings.Join(parts, ",")
}

type Timestamps struct {
	Created    string `json:"created,omitempty"`
	LastUpdate string `json:"lastUpdate,omitempty"`
}

// ValueSet holds the values of one entity, positionally aligned with
// ValueSets.Variables.
type ValueSet struct {
	Identifier string      `json:"identifier"`
	Values     []Value     `json:"values"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
}

// ValueSets is one page of a value table.
type ValueSets struct {
	EntityType string     `json:"entityType"`
	Variables  []string   `json:"variables"`
	ValueSets  []ValueSet `json:"valueSets"`
}

// LocaleText is a localized label.
type LocaleText struct {
	Locale string `json:"locale"`
	Text   string `json:"text"`
}

// FindText returns the text for locale.
func FindText(texts []LocaleText, locale string) (string, bool) {
	for _, lt := range texts {
		if lt.Locale == locale {
			return lt.Text, true
		}
	}
	return "", false
}

type Term struct {
	Name        string       `json:"name"`
	Title       []LocaleText `json:"title,omitempty"`
	Description []LocaleText `json:"description,omitempty"`
	Keywords    []LocaleText `json:"keywords,omitempty"`
}

type Vocabulary struct {
	Name        string       `json:"name"`
	Repeatable  bool         `json:"repeatable"`
	Title       []LocaleText `json:"title,omitempty"`
	Description []LocaleText `json:"description,omitempty"`
	Keywords    []LocaleText `json:"keywords,omitempty"`
	Terms       []Term       `json:"terms,omitempty"`
}

// Taxonomy is the root of the classification hierarchy.
type Taxonomy struct {
	Name         string       `json:"name"`
	Author       string       `json:"author,omitempty"`
	License      string       `json:"license,omitempty"`
	Title        []LocaleText `json:"title,omitempty"`
	Description  []LocaleText `json:"description,omitempty"`
	Keywords     []LocaleText `json:"keywords,omitempty"`
	Vocabularies []Vocabulary `json:"vocabularies,omitempty"`
}

type Project struct {
	Name            string   `json:"name"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Database        string   `json:"database,omitempty"`
	VcfStoreService string   `json:"vcfStoreService,omitempty"`
}

type MongoDBSettings struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
}

type SQLSettings struct {
	URL       string `json:"url"`
	Username  string `json:"username,omitempty"`
	SQLSchema string `json:"sqlSchema,omitempty"`
}

// Database is a storage or identifiers database registered in Opal.
type Database struct {
	Name               string           `json:"name"`
	Usage              string           `json:"usage,omitempty"`
	DefaultStorage     bool             `json:"defaultStorage"`
	HasDatasource      bool             `json:"hasDatasource"`
	UsedForIdentifiers bool             `json:"usedForIdentifiers"`
	MongoDBSettings    *MongoDBSettings `json:"mongoDbSettings,omitempty"`
	SQLSettings        *SQLSettings     `json:"sqlSettings,omitempty"`
}

// Type is MONGODB for MongoDB databases, otherwise the SQL schema kind.
func (d *Database) Type() string {
	switch {
	case d.MongoDBSettings != nil:
		return "MONGODB"
	case d.SQLSettings != nil:
		return d.SQLSettings.SQLSchema
	}
	return ""
}

func (d *Database) URL() string {
	switch {
	case d.MongoDBSettings != nil:
		return d.MongoDBSettings.URL
	case d.SQLSettings != nil:
		return d.SQLSettings.URL
	}
	return ""
}

func (d *Database) Username() string {
	switch {
	case d.MongoDBSettings != nil:
		return d.MongoDBSettings.Username
	case d.SQLSettings != nil:
		return d.SQLSettings.Username
	}
	return ""
}

// PluginPackage is an installed plugin.
type PluginPackage struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Maintainer  string `json:"maintainer,omitempty"`
	License     string `json:"license,omitempty"`
	Version     string `json:"version,omitempty"`
	OpalVersion string `json:"opalVersion,omitempty"`
	Website     string `json:"website,omitempty"`
}

type PluginPackages struct {
	Site     string          `json:"site,omitempty"`
	Updated  string          `json:"updated,omitempty"`
	Restart  bool            `json:"restart"`
	Packages []PluginPackage `json:"packages,omitempty"`
}
