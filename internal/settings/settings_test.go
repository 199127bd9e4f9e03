package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	dbmock "github.com/jon4hz/movin/internal/database/mock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  func(s *AppSettings)
	}{
		{
			name:  "empty patch keeps defaults",
			patch: Patch{},
			want:  func(s *AppSettings) {},
		},
		{
			name:  "single field",
			patch: Patch{FreeLimit: lo.ToPtr(3)},
			want:  func(s *AppSettings) { s.FreeLimit = 3 },
		},
		{
			name: "several fields",
			patch: Patch{
				ThemeMode:    lo.ToPtr(ThemeModeDark),
				PrimaryColor: lo.ToPtr("#000000"),
				Currency:     lo.ToPtr("USD"),
			},
			want: func(s *AppSettings) {
				s.ThemeMode = ThemeModeDark
				s.PrimaryColor = "#000000"
				s.Currency = "USD"
			},
		},
		{
			name:  "zero values are still applied",
			patch: Patch{FreeLimit: lo.ToPtr(0), LogoURL: lo.ToPtr("")},
			want: func(s *AppSettings) {
				s.FreeLimit = 0
				s.LogoURL = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Defaults()
			tt.want(&want)

			once := Merge(Defaults(), tt.patch)
			assert.Equal(t, want, once)

			twice := Merge(once, tt.patch)
			assert.Equal(t, once, twice, "merge must be idempotent")
		})
	}
}

func TestPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{name: "empty", patch: Patch{}},
		{name: "valid theme", patch: Patch{ThemeMode: lo.ToPtr(ThemeModeDark)}},
		{name: "invalid theme", patch: Patch{ThemeMode: lo.ToPtr(ThemeMode("sepia"))}, wantErr: true},
		{name: "invalid language", patch: Patch{Language: lo.ToPtr(Language("de"))}, wantErr: true},
		{name: "short hex color", patch: Patch{PrimaryColor: lo.ToPtr("#fff")}},
		{name: "invalid color", patch: Patch{PrimaryColor: lo.ToPtr("indigo")}, wantErr: true},
		{name: "negative free limit", patch: Patch{FreeLimit: lo.ToPtr(-1)}, wantErr: true},
		{name: "negative price", patch: Patch{TokenPrice: lo.ToPtr(int64(-5))}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	db := dbmock.NewMockDB()

	s, err := Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s.Current())
	assert.Equal(t, 10, s.FreeLimit())
}

func TestLoad_PartialBlobKeepsDefaults(t *testing.T) {
	db := dbmock.NewMockDB()
	db.Seed(SettingsKey, `{"themeMode":"dark","freeLimit":5}`)

	s, err := Load(context.Background(), db)
	require.NoError(t, err)

	want := Defaults()
	want.ThemeMode = ThemeModeDark
	want.FreeLimit = 5
	assert.Equal(t, want, s.Current())
}

func TestLoad_MalformedBlob(t *testing.T) {
	db := dbmock.NewMockDB()
	db.Seed(SettingsKey, `{not json`)

	s, err := Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s.Current())
}

func TestLoad_ConfirmedLanguageWins(t *testing.T) {
	db := dbmock.NewMockDB()
	db.Seed(SettingsKey, `{"language":"fa"}`)
	db.Seed(LanguageKey, "en")

	s, err := Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, LanguageEN, s.Current().Language)
}

func TestLoad_StoreError(t *testing.T) {
	db := dbmock.NewMockDB()
	db.GetError = errors.New("disk on fire")

	_, err := Load(context.Background(), db)
	assert.Error(t, err)
}

func TestStore_Update(t *testing.T) {
	db := dbmock.NewMockDB()
	ctx := context.Background()
	s, err := Load(ctx, db)
	require.NoError(t, err)

	updated, err := s.Update(ctx, Patch{PrimaryColor: lo.ToPtr("#112233")})
	require.NoError(t, err)
	assert.Equal(t, "#112233", updated.PrimaryColor)
	assert.Equal(t, updated, s.Current())

	raw, ok := db.Raw(SettingsKey)
	require.True(t, ok)
	var persisted AppSettings
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, updated, persisted)

	reloaded, err := Load(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded.Current())
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	db := dbmock.NewMockDB()
	ctx := context.Background()
	s, err := Load(ctx, db)
	require.NoError(t, err)

	_, err = s.Update(ctx, Patch{ThemeMode: lo.ToPtr(ThemeMode("neon"))})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, Defaults(), s.Current())
	assert.Zero(t, db.SetCalls[SettingsKey])
}

func TestStore_UpdatePersistFailureKeepsState(t *testing.T) {
	db := dbmock.NewMockDB()
	ctx := context.Background()
	s, err := Load(ctx, db)
	require.NoError(t, err)

	db.SetError = errors.New("read-only")
	_, err = s.Update(ctx, Patch{FreeLimit: lo.ToPtr(50)})
	assert.Error(t, err)
	assert.Equal(t, 10, s.FreeLimit())
}

func TestStore_ConfirmLanguage(t *testing.T) {
	db := dbmock.NewMockDB()
	ctx := context.Background()
	s, err := Load(ctx, db)
	require.NoError(t, err)

	confirmed, err := s.LanguageConfirmed(ctx)
	require.NoError(t, err)
	assert.False(t, confirmed)

	require.NoError(t, s.ConfirmLanguage(ctx, LanguageEN))
	assert.Equal(t, LanguageEN, s.Current().Language)

	confirmed, err = s.LanguageConfirmed(ctx)
	require.NoError(t, err)
	assert.True(t, confirmed)

	_, ok := db.Raw(SettingsKey)
	assert.False(t, ok, "confirming a language must not rewrite the settings blob")

	assert.ErrorIs(t, s.ConfirmLanguage(ctx, Language("xx")), ErrInvalidSettings)
}

func TestLoad_InvalidPersistedFieldsFallBack(t *testing.T) {
	db := dbmock.NewMockDB()
	db.Seed(SettingsKey, `{"freeLimit":-4,"themeMode":"neon","primaryColor":"red","language":"de","currency":"USD","tokenPrice":5}`)

	s, err := Load(context.Background(), db)
	require.NoError(t, err)

	want := Defaults()
	want.Currency = "USD"
	want.TokenPrice = 5
	assert.Equal(t, want, s.Current())
}

func TestStore_UpdateKeepsChangesOfOtherWriters(t *testing.T) {
	db := dbmock.NewMockDB()
	ctx := context.Background()
	server, err := Load(ctx, db)
	require.NoError(t, err)

	// a second store over the same db, like the settings command
	other, err := Load(ctx, db)
	require.NoError(t, err)
	_, err = other.Update(ctx, Patch{FreeLimit: lo.ToPtr(3)})
	require.NoError(t, err)

	updated, err := server.Update(ctx, Patch{ThemeMode: lo.ToPtr(ThemeModeDark)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.FreeLimit)
	assert.Equal(t, ThemeModeDark, updated.ThemeMode)

	require.NoError(t, other.Reload(ctx))
	assert.Equal(t, updated, other.Current())
}
