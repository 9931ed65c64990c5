package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	memrepo "github.com/structcms/versioned-content/pkg/versionedcontent/repo/memory"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := memrepo.New()
	reg, err := vc.NewLanguageRegistry(
		vc.Language{ID: 2, Code: "eng-GB"},
		vc.Language{ID: 4, Code: "ger-DE"},
	)
	require.NoError(t, err)

	svc, err := vc.New(vc.WithGateway(repo), vc.WithLanguages(reg))
	require.NoError(t, err)

	updater := schema.NewUpdater(svc, repo, slog.Default())
	schemaSvc := schema.NewService(repo, updater)

	r := chi.NewRouter()
	r.Mount("/content", NewContentHandler(svc, slog.Default()).Routes())
	r.Mount("/locations", NewTreeHandler(svc, slog.Default()).Routes())
	r.Mount("/types", NewTypeHandler(schemaSvc, slog.Default()).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createContentViaAPI(t *testing.T, server *httptest.Server) ContentResponse {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, server.URL+"/content", CreateContentRequest{
		TypeID:              1,
		OwnerID:             14,
		InitialLanguageCode: "eng-GB",
		Fields: []FieldRequest{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "eng-GB", DataText: "Hello"},
		},
		Names: map[string]string{"eng-GB": "Hello"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created ContentResponse
	require.NoError(t, json.Unmarshal(body, &created))
	return created
}

func TestCreateContentEndpoint(t *testing.T) {
	server := newTestServer(t)

	created := createContentViaAPI(t, server)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, []string{"eng-GB"}, created.Languages)
	require.NotNil(t, created.Version)
	assert.Equal(t, 1, created.Version.VersionNo)
	assert.Len(t, created.Fields, 1)
}

func TestCreateContentEndpointBadBody(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/content", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateContentEndpointInvalidRequest(t *testing.T) {
	server := newTestServer(t)

	// Missing type id maps to 400.
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/content", CreateContentRequest{
		InitialLanguageCode: "eng-GB",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetContentEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createContentViaAPI(t, server)

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf("%s/content/%d", server.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loaded ContentResponse
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, created.ID, loaded.ID)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/content/9999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createContentViaAPI(t, server)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/content/%d/versions/1/publish", server.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var published ContentResponse
	require.NoError(t, json.Unmarshal(body, &published))
	assert.Equal(t, "published", published.Status)

	// Publishing a non-draft version maps to 409.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/content/%d/versions/1/publish", server.URL, created.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDraftAndVersionEndpoints(t *testing.T) {
	server := newTestServer(t)
	created := createContentViaAPI(t, server)
	base := fmt.Sprintf("%s/content/%d", server.URL, created.ID)

	resp, _ := doJSON(t, http.MethodPost, base+"/versions/1/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Draft from the current version.
	resp, body := doJSON(t, http.MethodPost, base+"/versions", CreateDraftRequest{CreatorID: 27})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var draft ContentResponse
	require.NoError(t, json.Unmarshal(body, &draft))
	require.NotNil(t, draft.Version)
	assert.Equal(t, 2, draft.Version.VersionNo)

	resp, body = doJSON(t, http.MethodGet, base+"/versions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var versions []*vc.VersionInfo
	require.NoError(t, json.Unmarshal(body, &versions))
	assert.Len(t, versions, 2)

	resp, _ = doJSON(t, http.MethodDelete, base+"/versions/2", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Deleting the published version maps to 409.
	resp, _ = doJSON(t, http.MethodDelete, base+"/versions/1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateContentEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createContentViaAPI(t, server)

	resp, body := doJSON(t, http.MethodPut, fmt.Sprintf("%s/content/%d/versions/1", server.URL, created.ID), UpdateContentRequest{
		ModifierID: 14,
		Fields: []FieldRequest{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "ger-DE", DataText: "Hallo"},
		},
		Names: map[string]string{"ger-DE": "Hallo"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated ContentResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	require.NotNil(t, updated.Version)
	assert.Equal(t, vc.LanguageMask(2|4), updated.Version.LanguageMask)
}

func TestBulkEndpoint(t *testing.T) {
	server := newTestServer(t)
	a := createContentViaAPI(t, server)
	b := createContentViaAPI(t, server)

	resp, body := doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/content/bulk?id=%d&id=%d&id=9999", server.URL, a.ID, b.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var infos []ContentResponse
	require.NoError(t, json.Unmarshal(body, &infos))
	assert.Len(t, infos, 2)
}

func TestDeleteTranslationEndpoint(t *testing.T) {
	server := newTestServer(t)
	created := createContentViaAPI(t, server)
	base := fmt.Sprintf("%s/content/%d", server.URL, created.ID)

	resp, body := doJSON(t, http.MethodPut, base+"/versions/1", UpdateContentRequest{
		ModifierID: 14,
		Fields: []FieldRequest{
			{FieldDefinitionID: 100, Type: "ezstring", LanguageCode: "ger-DE", DataText: "Hallo"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Removing the main translation maps to 409.
	resp, _ = doJSON(t, http.MethodDelete, base+"/translations/eng-GB", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, base+"/translations/ger-DE", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRelationEndpoints(t *testing.T) {
	server := newTestServer(t)
	src := createContentViaAPI(t, server)
	dst := createContentViaAPI(t, server)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/content/%d/relations", server.URL, src.ID), AddRelationRequest{
		SourceVersionNo: 1,
		DestContentID:   dst.ID,
		Kind:            int64(vc.RelationCommon),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var rel vc.Relation
	require.NoError(t, json.Unmarshal(body, &rel))
	assert.NotZero(t, rel.ID)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/content/%d/relations?version_no=1", server.URL, src.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rels []vc.Relation
	require.NoError(t, json.Unmarshal(body, &rels))
	assert.Len(t, rels, 1)

	resp, _ = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/content/relations/%d?kind=%d", server.URL, rel.ID, int64(vc.RelationCommon)), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLocationEndpoints(t *testing.T) {
	server := newTestServer(t)

	// Placed content needs a publish to materialize its location.
	resp, body := doJSON(t, http.MethodPost, server.URL+"/content", CreateContentRequest{
		TypeID:              1,
		InitialLanguageCode: "eng-GB",
		Names:               map[string]string{"eng-GB": "Folder"},
		Locations:           []LocationRequest{{ParentLocationID: 0, IsMain: true}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var folder ContentResponse
	require.NoError(t, json.Unmarshal(body, &folder))

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/content/%d/versions/1/publish", server.URL, folder.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/locations/content/%d", server.URL, folder.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var locations []*vc.Location
	require.NoError(t, json.Unmarshal(body, &locations))
	require.Len(t, locations, 1)

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/locations/content/%d/trash", server.URL, folder.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/locations/content/%d/restore", server.URL, folder.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, server.URL+"/locations", AddLocationRequest{
		ContentID:        folder.ID,
		ParentLocationID: 0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var added vc.Location
	require.NoError(t, json.Unmarshal(body, &added))
	assert.NotZero(t, added.ID)

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/locations/%d", server.URL, locations[0].ID), nil)
	// The original location id is gone after trash and restore.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTypeEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/types", vc.ContentType{
		Identifier: "article",
		Names:      map[string]string{"eng-GB": "Article"},
		FieldDefinitions: []vc.FieldDefinition{
			{Identifier: "title", FieldType: "ezstring", IsTranslatable: true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created vc.ContentType
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/types/%d/publish", server.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var published vc.ContentType
	require.NoError(t, json.Unmarshal(body, &published))
	assert.Equal(t, vc.TypeStatusDefined, published.Status)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/types/%d", server.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded vc.ContentType
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, "article", loaded.Identifier)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/types/9999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
