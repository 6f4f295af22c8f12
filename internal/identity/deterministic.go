package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const namespace = "go-cms-admin:"

// UUID derives a stable UUID from key. Keys must be prefixed by entity kind
// to keep different entities from colliding.
func UUID(key string) uuid.UUID {
	key = strings.TrimSpace(key)
	if key == "" {
		return uuid.Nil
	}
	id, err := hashid.NewUUID(key, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || id == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	}
	return id
}

// PublicPageUUID is the id of the public copy of a draft page.
func PublicPageUUID(draftID uuid.UUID) uuid.UUID {
	return UUID(namespace + "public_page:" + draftID.String())
}

// PublicTitleUUID is the id of the public title for a draft page and language.
func PublicTitleUUID(draftID uuid.UUID, language string) uuid.UUID {
	return UUID(namespace + "public_title:" + draftID.String() + ":" + strings.ToLower(strings.TrimSpace(language)))
}

// PagePlaceholderUUID is the id of the placeholder filling slot on pageID.
func PagePlaceholderUUID(pageID uuid.UUID, slot string) uuid.UUID {
	return UUID(namespace + "placeholder:" + pageID.String() + ":" + strings.TrimSpace(slot))
}

// SiteUUID derives a site id from its domain.
func SiteUUID(domain string) uuid.UUID {
	return UUID(namespace + "site:" + strings.ToLower(strings.TrimSpace(domain)))
}
