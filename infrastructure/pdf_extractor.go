package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"cv-shortlist/domain"
)

const providerUnipdf = "unipdf"

// PdfExtractor reads PDF text locally with unipdf. Each page becomes a markdown section.
type PdfExtractor struct {
	log logrus.FieldLogger
}

// NewPdfExtractor registers the unidoc metered license key when one is given. Without a
// key pages can still be counted, but text extraction fails.
func NewPdfExtractor(licenseKey string, log logrus.FieldLogger) (*PdfExtractor, error) {
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("set unidoc license: %w", err)
		}
	}
	return &PdfExtractor{log: log.WithField("component", "pdf_extractor")}, nil
}

func (e *PdfExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	reader, numPages, err := openPdf(pdf)
	if err != nil {
		return "", &domain.ExtractionError{Provider: providerUnipdf, Err: err}
	}

	var (
		sb       strings.Builder
		firstErr error
	)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", &domain.ExtractionError{Provider: providerUnipdf, Err: err}
		}

		text, err := pageText(reader, i)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			e.log.WithError(err).WithField("page", i).Warn("skipping unreadable pdf page")
			continue
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s", i, text)
	}

	if sb.Len() == 0 {
		// Unlicensed unipdf fails every page, so the page error is the useful one.
		if firstErr != nil {
			return "", &domain.ExtractionError{Provider: providerUnipdf, Err: firstErr}
		}
		return "", &domain.ExtractionError{Provider: providerUnipdf, Err: errors.New("no text could be extracted from any page")}
	}
	return sb.String(), nil
}

// CountPages fails when data is not a readable PDF.
func (e *PdfExtractor) CountPages(pdf []byte) (int, error) {
	_, n, err := openPdf(pdf)
	return n, err
}

func openPdf(pdf []byte) (*model.PdfReader, int, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(pdf))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if numPages == 0 {
		return nil, 0, errors.New("PDF has no pages")
	}
	return reader, numPages, nil
}

func pageText(reader *model.PdfReader, number int) (string, error) {
	page, err := reader.GetPage(number)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	text, err := ex.ExtractText()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
