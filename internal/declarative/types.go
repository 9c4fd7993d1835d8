// Package declarative loads external table definitions from YAML files,
// plans the changes needed to bring a catalog in line with them and
// applies that plan.
package declarative

import "duck-connect/internal/domain"

// SupportedAPIVersion is the only apiVersion accepted in table files.
const SupportedAPIVersion = "duck-connect/v1"

// KindExternalTable is the kind of a table document.
const KindExternalTable = "ExternalTable"

// Document is one YAML document in a table file.
//
//	apiVersion: duck-connect/v1
//	kind: ExternalTable
//	metadata:
//	  name: users
//	spec:
//	  connector: File
//	  fields:
//	    - name: id
//	      type: BIGINT
//	  options:
//	    format: json
//	    file.path: /data/users
type Document struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       TableSpec  `yaml:"spec"`

	// FilePath is the file the document was read from.
	FilePath string `yaml:"-"`
}

// ObjectMeta holds common metadata for named resources.
type ObjectMeta struct {
	Name string `yaml:"name"`
}

// TableSpec is the desired shape of one external table.
type TableSpec struct {
	Connector string            `yaml:"connector"`
	Fields    []FieldSpec       `yaml:"fields,omitempty"`
	Options   map[string]string `yaml:"options,omitempty"`
}

// FieldSpec declares one column. ExternalName is the path into the
// native record and defaults to the column name.
type FieldSpec struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	ExternalName string `yaml:"external_name,omitempty"`
}

// Definition converts the document into a table definition. Field types
// must have been checked by Validate.
func (d Document) Definition() (domain.ExternalTableDefinition, error) {
	def := domain.ExternalTableDefinition{
		Name:          d.Metadata.Name,
		ConnectorType: d.Spec.Connector,
		Options:       d.Spec.Options,
	}
	for _, f := range d.Spec.Fields {
		field, err := f.field()
		if err != nil {
			return def, err
		}
		def.Fields = append(def.Fields, field)
	}
	return def, nil
}
