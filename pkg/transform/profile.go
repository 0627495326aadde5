package transform

import (
	"fmt"
	"sort"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Server-managed fields per resource. These are assigned by the source
// account and are rejected by create endpoints.
var (
	FormServerFields = []string{
		"guid", "createdAt", "updatedAt", "performableHtml", "migratedFrom",
		"tmsId", "campaignGuid", "parentId", "deletable", "deletedAt",
		"isPublished", "publishAt", "unpublishAt", "publishedAt", "customUid",
		"editVersion", "thankYouMessageJson", "internalUpdatedAt", "portableKey",
		"embedVersion", "isSmartGroup", "richText",
	}

	EmailServerFields = []string{
		"id", "createdAt", "updatedAt", "archivedAt", "publishedAt", "status",
		"appId", "processingStatus", "subscription", "subscriptionName",
		"businessUnitId",
	}

	PageServerFields = []string{"id", "createdAt", "updatedAt"}

	CampaignServerFields = []string{"id", "createdAt", "updatedAt", "campaignGuid"}

	DefaultServerFields = []string{"id", "createdAt", "updatedAt"}

	SalesloftServerFields = []string{"id", "created_at", "updated_at"}
)

// GroupSpec names the keys of a nested field-group structure:
// record[GroupsKey][i][FieldsKey][j][DependentKey].
type GroupSpec struct {
	GroupsKey    string `json:"groupsKey" yaml:"groupsKey"`
	FieldsKey    string `json:"fieldsKey" yaml:"fieldsKey"`
	DependentKey string `json:"dependentKey" yaml:"dependentKey"`
}

// DefaultGroups is the form layout
var DefaultGroups = GroupSpec{
	GroupsKey:    "formFieldGroups",
	FieldsKey:    "fields",
	DependentKey: "dependentFormField",
}

// Profile holds the resource-specific part of a transform
type Profile struct {
	Kind            string
	ServerFields    []string
	Groups          GroupSpec
	RenameKeys      bool // rename top-level keys as well as field-group names
	TimestampFields []string
	DraftState      string
	Normalizers     []string
	IDPath          string
	NamePath        string
}

// Built-in resource kinds
const (
	KindForm              = "form"
	KindEmail             = "email"
	KindLandingPage       = "landing-page"
	KindCampaign          = "campaign"
	KindProperty          = "property"
	KindWorkflow          = "workflow"
	KindCadence           = "cadence"
	KindSalesloftTemplate = "salesloft-template"
	KindGeneric           = "generic"
)

var profiles = map[string]Profile{
	KindForm: {
		ServerFields: FormServerFields,
		Groups:       DefaultGroups,
		Normalizers:  []string{NormalizeFormMetadata},
		IDPath:       "guid",
	},
	KindEmail: {
		ServerFields: EmailServerFields,
		RenameKeys:   true,
		DraftState:   "DRAFT",
		Normalizers:  []string{NormalizeDraftState},
	},
	KindLandingPage: {
		ServerFields:    PageServerFields,
		RenameKeys:      true,
		TimestampFields: []string{"archivedAt"},
		Normalizers:     []string{NormalizeEpochMillis},
	},
	KindCampaign: {
		ServerFields: CampaignServerFields,
		RenameKeys:   true,
		Normalizers:  []string{NormalizeCampaign},
	},
	KindProperty: {
		ServerFields: DefaultServerFields,
		RenameKeys:   true,
		Normalizers:  []string{NormalizeProperty},
		IDPath:       "name",
	},
	KindWorkflow: {
		ServerFields: DefaultServerFields,
		Normalizers:  []string{NormalizeWorkflow},
	},
	KindCadence: {
		Normalizers: []string{NormalizeCadence},
		IDPath:      "data.id",
		NamePath:    "data.cadence_content.settings.name",
	},
	KindSalesloftTemplate: {
		Normalizers: []string{NormalizeSalesloftTemplate},
		IDPath:      "data.id",
		NamePath:    "data.title",
	},
	KindGeneric: {
		ServerFields: DefaultServerFields,
		RenameKeys:   true,
	},
}

// Kinds lists the built-in profile names
func Kinds() []string {
	out := make([]string, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ProfileFor returns a copy of a built-in profile
func ProfileFor(kind string) (Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	p.Kind = kind
	p.ServerFields = append([]string(nil), p.ServerFields...)
	p.TimestampFields = append([]string(nil), p.TimestampFields...)
	p.Normalizers = append([]string(nil), p.Normalizers...)
	return p.withDefaults(), nil
}

func (p Profile) withDefaults() Profile {
	if p.IDPath == "" {
		p.IDPath = "id"
	}
	if p.NamePath == "" {
		p.NamePath = "name"
	}
	if p.DraftState == "" {
		p.DraftState = "DRAFT"
	}
	if p.Groups.FieldsKey == "" {
		p.Groups.FieldsKey = DefaultGroups.FieldsKey
	}
	if p.Groups.DependentKey == "" {
		p.Groups.DependentKey = DefaultGroups.DependentKey
	}
	return p
}

// SourceID returns the identifier of a fetched record, falling back to "id"
func (p Profile) SourceID(r *record.Record) string {
	if id := r.PathString(p.IDPath, ""); id != "" {
		return id
	}
	return r.ID()
}

// DisplayName returns the human-readable name used in summaries
func (p Profile) DisplayName(r *record.Record) string {
	if name := r.PathString(p.NamePath, ""); name != "" {
		return name
	}
	return r.GetString("name", "")
}
