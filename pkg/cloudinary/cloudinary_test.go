package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDStripsExtensionAndUnsafeRunes(t *testing.T) {
	require.Equal(t, "mushaf-page-562-3f2a", publicID("mushaf page 562-3f2a.png"))
	require.Equal(t, "al_mulk", publicID("../al_mulk.mp3"))
}

func TestResourceType(t *testing.T) {
	require.Equal(t, "image", resourceType("page.JPG"))
	require.Equal(t, "raw", resourceType("notes.pdf"))
	require.Equal(t, "video", resourceType("recitation.m4a"))
	require.Equal(t, "auto", resourceType("blob"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/hifz/submissions/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "hifz/submissions", svc.folder)
}
