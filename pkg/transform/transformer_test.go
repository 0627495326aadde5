package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/record"
)

func mustRecord(t *testing.T, s string) *record.Record {
	t.Helper()
	r, err := record.DecodeRecord([]byte(s))
	require.NoError(t, err)
	return r
}

func mustMapping(t *testing.T, entries ...common.MappingEntry) common.FieldMapping {
	t.Helper()
	m, err := common.NewFieldMapping(entries)
	require.NoError(t, err)
	return m
}

func mustProfile(t *testing.T, kind string) Profile {
	t.Helper()
	p, err := ProfileFor(kind)
	require.NoError(t, err)
	return p
}

func TestScenarioDenyID(t *testing.T) {
	tr, err := New(Profile{RenameKeys: true}, common.NewDenyList([]string{"id"}, nil), common.FieldMapping{})
	require.NoError(t, err)

	out, errs := tr.TransformAll([]*record.Record{
		mustRecord(t, `{"id":"1","name":"A"}`),
		mustRecord(t, `{"id":"2","name":"B"}`),
	})
	require.Empty(t, errs)
	require.Len(t, out, 2)
	assert.Equal(t, `{"name":"A"}`, out[0].String())
	assert.Equal(t, `{"name":"B"}`, out[1].String())
}

const formJSON = `{
  "guid": "f-1",
  "name": "Contact us",
  "createdAt": 1700000000000,
  "isPublished": true,
  "metaData": [{"name":"createdByAppId","value":"7"},{"name":"lang","value":"en"}],
  "formFieldGroups": [
    {"fields": [
      {"name": "email", "label": "Email"},
      {"name": "leadsource", "label": "Lead source"},
      {"name": "country", "label": "Country",
       "dependentFormField": {"name": "state", "label": "State",
         "dependentFormField": {"name": "leadsource"}}}
    ]},
    {"fields": [
      {"name": " lifecyclestage "},
      {"name": "company", "dependentFormField": {"name": "lifecyclestage"}}
    ]}
  ]
}`

func TestFormTransform(t *testing.T) {
	in := mustRecord(t, formJSON)
	before := in.String()

	tr, err := New(mustProfile(t, KindForm),
		common.NewDenyList([]string{"leadsource", "lifecyclestage"}, nil),
		mustMapping(t,
			common.MappingEntry{ExternalName: "email_address", InternalName: "email"},
			common.MappingEntry{ExternalName: "region", InternalName: "state"},
		))
	require.NoError(t, err)

	out, err := tr.Transform(in)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, before, in.String(), "input must not be mutated")
	assert.False(t, out.Has("guid"))
	assert.False(t, out.Has("createdAt"))
	assert.False(t, out.Has("isPublished"))
	assert.Len(t, out.GetList("metaData"), 1)

	want := `{"name":"Contact us","metaData":[{"name":"lang","value":"en"}],"formFieldGroups":[` +
		`{"fields":[{"name":"email_address","label":"Email"},{"name":"country","label":"Country","dependentFormField":{"name":"region","label":"State"}}]},` +
		`{"fields":[{"name":"company"}]}]}`
	assert.Equal(t, want, out.String())
}

func TestTransformIsDeterministic(t *testing.T) {
	tr, err := New(mustProfile(t, KindForm),
		common.NewDenyList([]string{"leadsource"}, nil),
		mustMapping(t, common.MappingEntry{ExternalName: "email_address", InternalName: "email"}))
	require.NoError(t, err)

	in := mustRecord(t, formJSON)
	a, err := tr.Transform(in)
	require.NoError(t, err)
	b, err := tr.Transform(in)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestDenyTakesPrecedenceOverMapping(t *testing.T) {
	mapping := mustMapping(t, common.MappingEntry{ExternalName: "email_address", InternalName: "email"})
	in := mustRecord(t, `{"email":"a@b.c","email_address":"x","other":1,
		"formFieldGroups":[{"fields":[{"name":"email"},{"name":"email_address"},{"name":"other"}]}]}`)

	for _, denied := range []string{"email", "email_address"} {
		t.Run(denied, func(t *testing.T) {
			p := mustProfile(t, KindGeneric)
			p.Groups = DefaultGroups
			tr, err := New(p, common.NewDenyList([]string{denied}, nil), mapping)
			require.NoError(t, err)

			out, err := tr.Transform(in)
			require.NoError(t, err)
			assert.Equal(t, `{"other":1,"formFieldGroups":[{"fields":[{"name":"other"}]}]}`, out.String())
		})
	}
}

func TestDeniedIDExcludesRecord(t *testing.T) {
	tr, err := New(mustProfile(t, KindEmail), common.NewDenyList(nil, []string{"42"}), common.FieldMapping{})
	require.NoError(t, err)

	out, err := tr.Transform(mustRecord(t, `{"id":42,"name":"Newsletter"}`))
	assert.NoError(t, err)
	assert.Nil(t, out)

	out, err = tr.Transform(mustRecord(t, `{"id":43,"name":"Newsletter","status":"PUBLISHED","state":"PUBLISHED"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Newsletter","state":"DRAFT"}`, out.String())
}

func TestTopLevelRename(t *testing.T) {
	tr, err := New(mustProfile(t, KindGeneric), common.DenyList{},
		mustMapping(t, common.MappingEntry{ExternalName: "title", InternalName: "subject"}))
	require.NoError(t, err)

	out, err := tr.Transform(mustRecord(t, `{"id":"9","subject":"Hi","body":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hi","body":"x"}`, out.String())
}

func TestTopLevelRenameChainedAndSwapped(t *testing.T) {
	chained, err := New(mustProfile(t, KindGeneric), common.DenyList{},
		mustMapping(t,
			common.MappingEntry{ExternalName: "b", InternalName: "a"},
			common.MappingEntry{ExternalName: "c", InternalName: "b"},
		))
	require.NoError(t, err)
	out, err := chained.Transform(mustRecord(t, `{"a":1,"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"c":2}`, out.String())

	swapped, err := New(mustProfile(t, KindGeneric), common.DenyList{},
		mustMapping(t,
			common.MappingEntry{ExternalName: "y", InternalName: "x"},
			common.MappingEntry{ExternalName: "x", InternalName: "y"},
		))
	require.NoError(t, err)
	out, err = swapped.Transform(mustRecord(t, `{"x":"first","y":"second"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"y":"first","x":"second"}`, out.String())
}

func TestTopLevelRenameCollisionKeepsRenamedValue(t *testing.T) {
	tr, err := New(mustProfile(t, KindGeneric), common.DenyList{},
		mustMapping(t, common.MappingEntry{ExternalName: "title", InternalName: "subject"}))
	require.NoError(t, err)

	out, err := tr.Transform(mustRecord(t, `{"title":"old","subject":"new","body":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"new","body":"x"}`, out.String())

	out, err = tr.Transform(mustRecord(t, `{"subject":"new","title":"old"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"new"}`, out.String())
}

func TestLandingPageEpochMillis(t *testing.T) {
	tr, err := New(mustProfile(t, KindLandingPage), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)

	out, err := tr.Transform(mustRecord(t, `{"id":"5","createdAt":"x","name":"Page","archivedAt":"2024-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Page","archivedAt":1704164645000}`, out.String())

	out, err = tr.Transform(mustRecord(t, `{"name":"Page","archivedAt":0}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Page","archivedAt":0}`, out.String())

	_, err = tr.Transform(mustRecord(t, `{"name":"Page","archivedAt":"yesterday"}`))
	assert.Error(t, err)
}

func TestCampaignAndPropertyProjection(t *testing.T) {
	tr, err := New(mustProfile(t, KindCampaign), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)
	out, err := tr.Transform(mustRecord(t, `{"id":"c1","name":"Spring","type":"EMAIL","budget":10}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Spring","startDate":null,"endDate":null,"type":"EMAIL","status":null}`, out.String())

	tr, err = New(mustProfile(t, KindProperty), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)
	out, err = tr.Transform(mustRecord(t, `{"name":"tier","label":"Tier","type":"enumeration","fieldType":"select","groupName":"info","options":[],"hidden":false}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"tier","label":"Tier","type":"enumeration","fieldType":"select","groupName":"info"}`, out.String())

	out, err = tr.Transform(mustRecord(t, `{"name":"tier","options":[{"label":"Gold","value":"gold"}]}`))
	require.NoError(t, err)
	assert.Len(t, out.GetList("options"), 1)
}

func TestWorkflowRelinksSupportedActions(t *testing.T) {
	tr, err := New(mustProfile(t, KindWorkflow), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)

	in := mustRecord(t, `{"id":"77","name":"Nurture","enrollmentCriteria":{"type":"MANUAL"},"actions":[
		{"actionId":"1","actionTypeId":"0-1","type":"SINGLE_CONNECTION","connection":{"edgeType":"STANDARD","nextActionId":"2"}},
		{"actionId":"2","actionTypeId":"0-99","type":"SINGLE_CONNECTION","connection":{"nextActionId":"3"}},
		{"actionId":"3","actionTypeId":"0-4","type":"SINGLE_CONNECTION","actionTypeVersion":1,"fields":{"a":1},"connection":{"edgeType":"GOTO","nextActionId":"2"}}
	]}`)
	out, err := tr.Transform(in)
	require.NoError(t, err)

	assert.Equal(t, "Copy of Nurture", out.GetString("name", ""))
	assert.Equal(t, "Created via API", out.GetString("description", ""))
	assert.Equal(t, "CONTACT_FLOW", out.GetString("type", ""))
	assert.Equal(t, "MANUAL", out.PathString("enrollmentCriteria.type", ""))

	actions := record.Records(out.GetList("actions"))
	require.Len(t, actions, 2)
	assert.Equal(t, `{"actionId":"1","type":"SINGLE_CONNECTION","actionTypeVersion":0,"actionTypeId":"0-1","fields":{},"connection":{"edgeType":"STANDARD","nextActionId":"3"}}`, actions[0].String())
	assert.Equal(t, `{"actionId":"3","type":"SINGLE_CONNECTION","actionTypeVersion":1,"actionTypeId":"0-4","fields":{"a":1},"connection":{"edgeType":"GOTO"}}`, actions[1].String())
}

func TestCadenceFlatten(t *testing.T) {
	tr, err := New(mustProfile(t, KindCadence), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)

	in := mustRecord(t, `{"data":{"cadence_content":{
		"settings":{"name":"Outbound Q1","target_daily_people":25},
		"sharing_settings":{"team_cadence":true},
		"step_groups":[
			{"day":1,"automated":true,"automated_settings":{"send_type":"after_time_delay","time_of_day":"09:00","timezone_mode":"user"},
			 "steps":[{"name":"Intro","enabled":true,"type":"email","type_settings":{"template_id":3},"id":99}]},
			{"day":3,"automated":true,"automated_settings":{"send_type":"at_time","delay_time":60}},
			{"day":5,"automated":false}
		]}}}`)
	out, err := tr.Transform(in)
	require.NoError(t, err)

	assert.Equal(t, `{"name":"Outbound Q1","target_daily_people":25,"remove_replied":true,"remove_bounced":true,`+
		`"reschedule_from_pause_enabled":true,"external_identifier":null,"cadence_function":"outbound",`+
		`"added_stage_setting":"Open","bounced_stage_setting":"Working","finished_stage_setting":"Completed",`+
		`"replied_stage_setting":"Do Not Contact"}`, out.GetRecord("settings").String())
	assert.Equal(t, `{"team_cadence":true,"shared":true}`, out.GetRecord("sharing_settings").String())

	groups := record.Records(out.GetRecord("cadence_content").GetList("step_groups"))
	require.Len(t, groups, 3)
	assert.Equal(t, `{"send_type":"after_time_delay","delay_time":0}`, groups[0].GetRecord("automated_settings").String())
	assert.Equal(t, `[{"name":"Intro","enabled":true,"type":"email","type_settings":{"template_id":3}}]`, mustJSON(t, groups[0].GetList("steps")))
	assert.Equal(t, `{"send_type":"at_time","time_of_day":"08:00","timezone_mode":"user"}`, groups[1].GetRecord("automated_settings").String())
	assert.Equal(t, `{}`, groups[2].GetRecord("automated_settings").String())

	_, err = tr.Transform(mustRecord(t, `{"data":{"cadence_content":{"settings":{}}}}`))
	assert.Error(t, err)
}

func TestSalesloftTemplate(t *testing.T) {
	tr, err := New(mustProfile(t, KindSalesloftTemplate), common.DenyList{}, common.FieldMapping{})
	require.NoError(t, err)

	out, err := tr.Transform(mustRecord(t, `{"data":{"id":5,"title":"Follow up","body":"<p>Hi</p>"}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Follow up","body":"<p>Hi</p>","name":"Follow up"}`, out.String())

	_, err = tr.Transform(mustRecord(t, `{"data":{"body":"x"}}`))
	assert.Error(t, err)
}

func TestUnknownNormalizer(t *testing.T) {
	_, err := New(Profile{Normalizers: []string{"nope"}}, common.DenyList{}, common.FieldMapping{})
	assert.Error(t, err)

	_, err = ProfileFor("nope")
	assert.Error(t, err)
	assert.Contains(t, Kinds(), KindCadence)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	r := record.New()
	r.Set("v", v)
	s := r.String()
	return s[len(`{"v":`) : len(s)-1]
}
