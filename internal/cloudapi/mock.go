package cloudapi

import "context"

// MockClient records outbound calls instead of hitting the Graph API.
// In tests, use cloudapi.NewMockClient() instead of NewClient.
type MockClient struct {
	Texts     []MockText
	Documents []MockDocument
	Lists     []MockList
	Uploads   []MockUpload
	Media     map[string][]byte
	Err       error
}

// MockText is a recorded SendText call.
type MockText struct {
	To   string
	Body string
}

// MockDocument is a recorded SendDocumentByID call.
type MockDocument struct {
	To       string
	MediaID  string
	Filename string
}

// MockList is a recorded SendList call.
type MockList struct {
	To   string
	List List
}

// MockUpload is a recorded UploadMedia call.
type MockUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

func NewMockClient() *MockClient {
	return &MockClient{Media: make(map[string][]byte)}
}

func (m *MockClient) SendText(ctx context.Context, to, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Texts = append(m.Texts, MockText{To: to, Body: body})
	return nil
}

func (m *MockClient) SendDocumentByID(ctx context.Context, to, mediaID, filename string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Documents = append(m.Documents, MockDocument{To: to, MediaID: mediaID, Filename: filename})
	return nil
}

func (m *MockClient) SendList(ctx context.Context, to string, list List) error {
	if m.Err != nil {
		return m.Err
	}
	m.Lists = append(m.Lists, MockList{To: to, List: list})
	return nil
}

func (m *MockClient) UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Uploads = append(m.Uploads, MockUpload{Filename: filename, MimeType: mimeType, Data: data})
	return "mock-media-1", nil
}

func (m *MockClient) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if m.Err != nil {
		return nil, "", m.Err
	}
	if content, ok := m.Media[mediaID]; ok {
		return content, "application/pdf", nil
	}
	return []byte("mock media"), "application/pdf", nil
}
