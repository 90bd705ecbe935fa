package ingest

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestExtract_Text(t *testing.T) {
	title, body, err := Extract(TypeText, "  Linha   um\n\n\n  linha dois  ")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if title != "" {
		t.Errorf("title = %q, want empty", title)
	}
	if body != "Linha um\nlinha dois" {
		t.Errorf("body = %q", body)
	}
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title> Pagamentos </title><style>.x{color:red}</style></head>
<body><h1>Prestações</h1><p>Pode pagar em <b>três</b> prestações.</p>
<script>alert("x")</script><ul><li>MB WAY</li><li>Multibanco</li></ul></body></html>`

	title, body, err := Extract(TypeHTML, page)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if title != "Pagamentos" {
		t.Errorf("title = %q, want %q", title, "Pagamentos")
	}
	for _, want := range []string{"Prestações", "Pode pagar em três prestações.", "MB WAY", "Multibanco"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	for _, unwanted := range []string{"alert", "color:red", "Pagamentos"} {
		if strings.Contains(body, unwanted) {
			t.Errorf("body contains %q:\n%s", unwanted, body)
		}
	}
}

func TestExtract_Empty(t *testing.T) {
	_, _, err := Extract(TypeHTML, "<html><script>x()</script></html>")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExtract_PDFErrors(t *testing.T) {
	if _, _, err := Extract(TypePDF, "%%% not base64"); err == nil {
		t.Error("expected error for invalid base64")
	}
	notPDF := base64.StdEncoding.EncodeToString([]byte("plain text, not a pdf"))
	if _, _, err := Extract(TypePDF, notPDF); err == nil {
		t.Error("expected error for non-pdf bytes")
	}
}

func TestExtract_UnsupportedType(t *testing.T) {
	if _, _, err := Extract("docx", "x"); err == nil {
		t.Error("expected error for unsupported type")
	}
}
