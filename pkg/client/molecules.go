package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Molecule is a registry entry.
type Molecule struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	SMILES     string `json:"smiles" yaml:"smiles"`
}

// SearchResult lists the molecules containing a pattern.
type SearchResult struct {
	Matches []Molecule `json:"matches" yaml:"matches"`

	// RegistryEmpty is set when the server had nothing to search.
	RegistryEmpty bool `json:"registry_empty" yaml:"registry_empty"`
}

// UploadResult summarises a bulk upload.
type UploadResult struct {
	Detail  string `json:"detail" yaml:"detail"`
	Added   int    `json:"added" yaml:"added"`
	Skipped int    `json:"skipped" yaml:"skipped"`
}

const (
	detailEmptyRegistry = "No molecules available for search"
)

// MoleculesClient wraps the registry routes.
type MoleculesClient struct {
	client *Client
}

// Get fetches one molecule.
func (m *MoleculesClient) Get(ctx context.Context, identifier string) (*Molecule, error) {
	body, err := m.client.do(ctx, request{method: http.MethodGet, path: "/molecules/" + url.PathEscape(identifier)})
	if err != nil {
		return nil, err
	}
	return decodeMolecule(body)
}

// Add registers a molecule.
func (m *MoleculesClient) Add(ctx context.Context, identifier, smiles string) (*Molecule, error) {
	body, err := m.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/add",
		body:        jsonBody(Molecule{Identifier: identifier, SMILES: smiles}),
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	return decodeMolecule(body)
}

// Update replaces a molecule's notation.
func (m *MoleculesClient) Update(ctx context.Context, identifier, smiles string) (*Molecule, error) {
	body, err := m.client.do(ctx, request{
		method:      http.MethodPut,
		path:        "/molecules/" + url.PathEscape(identifier),
		body:        jsonBody(map[string]string{"smiles": smiles}),
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	return decodeMolecule(body)
}

// Delete removes a molecule and returns the server's confirmation.
func (m *MoleculesClient) Delete(ctx context.Context, identifier string) (string, error) {
	body, err := m.client.do(ctx, request{method: http.MethodDelete, path: "/molecules/" + url.PathEscape(identifier)})
	if err != nil {
		return "", err
	}
	var d struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &d); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return d.Detail, nil
}

// List returns every molecule in registry order.  An empty registry yields
// an empty slice.
func (m *MoleculesClient) List(ctx context.Context) ([]Molecule, error) {
	body, err := m.client.do(ctx, request{method: http.MethodGet, path: "/molecules/"})
	if err != nil {
		return nil, err
	}
	mols, _, err := decodeListOrDetail(body)
	return mols, err
}

// Search returns the molecules containing pattern.
func (m *MoleculesClient) Search(ctx context.Context, pattern string) (*SearchResult, error) {
	body, err := m.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/molecules/search/",
		body:        jsonBody(map[string]string{"substructure": pattern}),
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	mols, detail, err := decodeListOrDetail(body)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Matches: mols, RegistryEmpty: detail == detailEmptyRegistry}, nil
}

// Upload sends "identifier:SMILES" lines as a text/plain file.  The batch is
// applied entirely or not at all.
func (m *MoleculesClient) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	body, err := m.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/molecules/upload/",
		body:        func() (io.Reader, error) { return bytes.NewReader(buf.Bytes()), nil },
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	var res UploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &res, nil
}

func decodeMolecule(body []byte) (*Molecule, error) {
	var mol Molecule
	if err := json.Unmarshal(body, &mol); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &mol, nil
}

// decodeListOrDetail handles routes that answer with either an array of
// molecules or a {"detail": ...} object.
func decodeListOrDetail(body []byte) ([]Molecule, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var mols []Molecule
		if err := json.Unmarshal(trimmed, &mols); err != nil {
			return nil, "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return mols, "", nil
	}
	var d struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return []Molecule{}, d.Detail, nil
}
