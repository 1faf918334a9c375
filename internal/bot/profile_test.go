package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/freddie-nelson/ig-bot/internal/types"
)

type editForm struct {
	inputs   map[string]*fakeEl
	submit   *fakeEl
	gender   *fakeEl
	options  []*fakeEl
	custom   *fakeEl
	checkbox *fakeEl
	saves    int
}

// editPage serves the profile editor. Submitting shows toast; touching an input
// dismisses it.
func editPage(p *fakePage, toast string) *editForm {
	f := &editForm{inputs: make(map[string]*fakeEl)}
	dismiss := func() { p.remove(SelToast) }
	for _, sel := range []string{SelName, SelUsername, SelBio, SelWebsite, SelEmail, SelPhone} {
		f.inputs[sel] = newEl("").clicked(dismiss)
	}
	f.submit = newEl("Submit").clicked(func() {
		f.saves++
		p.set(SelToast, newEl(toast))
	})

	f.custom = newEl("").clicked(dismiss)
	for _, label := range []string{"Male", "Female", "Custom", "Prefer not to say"} {
		f.options = append(f.options, newEl(label))
	}
	f.options[2].clicked(func() { p.set(SelCustomGender, f.custom) })
	fieldset := newEl("").kids(f.options...)
	done := newEl("Done").clicked(func() {
		p.remove(SelDialog, SelCustomGender)
		p.set(SelAnyButton, f.submit)
	})
	f.gender = newEl("Prefer not to say").clicked(func() {
		dismiss()
		p.set(SelDialog, newEl("").with(SelGenderOptions, fieldset))
		p.set(SelAnyButton, done, f.submit)
	})

	f.checkbox = newEl("")
	label := newEl("").clicked(func() {
		dismiss()
		f.checkbox.setProp("checked", !f.checkbox.props["checked"])
	})

	p.route(PathEditProfile, func() {
		for sel, el := range f.inputs {
			p.set(sel, el)
		}
		p.set(SelAnyButton, f.submit)
		p.set(SelGender, f.gender)
		p.set(SelChainingCheckbox, f.checkbox)
		p.set(SelChainingLabel, label)
	})
	return f
}

func TestSetBio_Boundary(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)
	ctx := context.Background()

	bio := strings.Repeat("é", MaxBioLength)
	require.NoError(t, b.SetBio(ctx, bio))
	assert.Equal(t, bio, f.inputs[SelBio].currentValue())
	assert.Equal(t, 1, f.saves)

	navs := p.navigationCount()
	var ie *InvalidInputError
	require.ErrorAs(t, b.SetBio(ctx, bio+"x"), &ie)
	assert.Equal(t, "bio", ie.Field)
	assert.Equal(t, navs, p.navigationCount())
	assert.False(t, b.IsBusy())
}

func TestSetUsername(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)
	ctx := context.Background()

	var ie *InvalidInputError
	require.ErrorAs(t, b.SetUsername(ctx, "bad username!"), &ie)
	assert.Zero(t, p.navigationCount())

	require.NoError(t, b.SetUsername(ctx, "new.name_1"))
	assert.Equal(t, "new.name_1", f.inputs[SelUsername].currentValue())
	assert.Equal(t, "new.name_1", b.Username())
}

func TestSetUsername_RenamesLogAccount(t *testing.T) {
	p := newFakePage()
	editPage(p, TextProfileSaved)
	core, logs := observer.New(zap.DebugLevel)
	b := New("tester", "secret123", &fakeLauncher{page: p}, testOptions(), zap.New(core))
	b.state = StateLoggedIn
	b.page = p
	ctx := context.Background()

	require.NoError(t, b.SetUsername(ctx, "new.name_1"))
	require.NoError(t, b.SetBio(ctx, "hello"))

	entries := logs.FilterField(zap.String("field", "bio")).All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "new.name_1", entries[0].ContextMap()["account"])
}

func TestSetField_ReplacesExistingValue(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	f.inputs[SelWebsite].value = "https://old.example.com"
	b := loggedInBot(t, p)

	require.NoError(t, b.SetWebsite(context.Background(), "https://new.example.com"))

	assert.Equal(t, "https://new.example.com", f.inputs[SelWebsite].currentValue())
	assert.Equal(t, []string{"https://new.example.com"}, p.typedInto(f.inputs[SelWebsite]))
}

func TestSetProfile_AppliesEachField(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)

	err := b.SetProfile(context.Background(), types.Profile{
		Name:    "Test User",
		Bio:     "hello",
		Website: "https://example.com",
		Email:   "me@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, 4, f.saves)
	assert.Equal(t, 1, p.navigationCount(), "setters reuse the open editor")
	assert.Equal(t, "Test User", f.inputs[SelName].currentValue())
	assert.Equal(t, "me@example.com", f.inputs[SelEmail].currentValue())
	assert.False(t, b.IsBusy())
}

func TestSetProfile_ValidatesEverythingFirst(t *testing.T) {
	p := newFakePage()
	editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)

	err := b.SetProfile(context.Background(), types.Profile{
		Name: "Fine",
		Bio:  strings.Repeat("x", MaxBioLength+1),
	})

	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Zero(t, p.navigationCount())
	assert.False(t, b.IsBusy())
}

func TestSetProfile_Rejected(t *testing.T) {
	p := newFakePage()
	editPage(p, "This username isn't available.")
	b := loggedInBot(t, p)

	err := b.SetProfile(context.Background(), types.Profile{Username: "taken"})

	var rr *RemoteRejectionError
	require.ErrorAs(t, err, &rr)
	assert.Equal(t, "This username isn't available.", rr.Message)
	assert.Equal(t, "tester", b.Username())
	assert.False(t, b.IsBusy())
}

func TestSaveProfileChanges_SkipsDisabledSubmit(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	f.submit.attr("aria-disabled", "true")
	b := loggedInBot(t, p)

	require.NoError(t, b.SetName(context.Background(), "Same Name"))
	assert.Zero(t, f.saves)
}

func TestSetGender_Custom(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)
	ctx := context.Background()

	var ie *InvalidInputError
	require.ErrorAs(t, b.SetGender(ctx, types.GenderCustom, " "), &ie)
	require.ErrorAs(t, b.SetGender(ctx, types.Gender("robot"), ""), &ie)

	require.NoError(t, b.SetGender(ctx, types.GenderCustom, "nonbinary"))

	assert.Contains(t, p.clicks, f.options[2])
	assert.Equal(t, "nonbinary", f.custom.currentValue())
	assert.Equal(t, 1, f.saves)
}

func TestSetGender_Order(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)

	require.NoError(t, b.SetGender(context.Background(), types.GenderFemale, ""))

	assert.Contains(t, p.clicks, f.options[1])
	assert.NotContains(t, p.clicks, f.options[0])
}

func TestSetChaining_Idempotent(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	b := loggedInBot(t, p)
	ctx := context.Background()

	require.NoError(t, b.SetChaining(ctx, true))
	require.NoError(t, b.SetChaining(ctx, true))

	assert.Equal(t, 1, f.saves)
	checked, _ := f.checkbox.Property(ctx, "checked")
	assert.True(t, checked)
}

func TestSetPassword(t *testing.T) {
	p := newFakePage()
	old, next, confirm := newEl(""), newEl(""), newEl("")
	change := newEl("Change Password").clicked(func() { p.set(SelToast, newEl(TextPasswordChanged)) })
	p.route(PathChangePassword, func() {
		p.set(SelOldPassword, old)
		p.set(SelNewPassword, next)
		p.set(SelConfirmPassword, confirm)
		p.set(SelAnyButton, change)
	})
	b := loggedInBot(t, p)
	ctx := context.Background()

	var ie *InvalidInputError
	require.ErrorAs(t, b.SetPassword(ctx, "short"), &ie)

	require.NoError(t, b.SetPassword(ctx, "n3w-secret"))

	assert.Equal(t, "secret123", old.currentValue())
	assert.Equal(t, "n3w-secret", next.currentValue())
	assert.Equal(t, "n3w-secret", confirm.currentValue())
	assert.Equal(t, "n3w-secret", b.password)
}

func TestGetProfile(t *testing.T) {
	p := newFakePage()
	f := editPage(p, TextProfileSaved)
	f.inputs[SelUsername].value = "tester"
	f.inputs[SelName].value = "Test User"
	f.inputs[SelBio].value = "hi"
	f.checkbox.props["checked"] = true
	b := loggedInBot(t, p)

	profile, err := b.GetProfile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tester", profile.Username)
	assert.Equal(t, "Test User", profile.Name)
	assert.Equal(t, "hi", profile.Bio)
	assert.Equal(t, types.GenderPreferNotToSay, profile.Gender)
	require.NotNil(t, profile.Chaining)
	assert.True(t, *profile.Chaining)
}

func TestParseGender(t *testing.T) {
	g, custom := parseGender("Female")
	assert.Equal(t, types.GenderFemale, g)
	assert.Empty(t, custom)

	g, custom = parseGender(" Two-spirit ")
	assert.Equal(t, types.GenderCustom, g)
	assert.Equal(t, "Two-spirit", custom)
}
