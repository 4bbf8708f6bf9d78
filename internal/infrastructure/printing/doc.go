// Package printing turns sales documents into printable artifacts.
//
// A DocumentRenderer binds a document payload to the embedded HTML template
// through the TemplateEngine and hands the HTML to a PDFRenderer. The
// ChromedpRenderer prints via a local or remote headless Chrome. Without a
// PDF renderer the HTML itself becomes the artifact, which keeps local
// development and tests free of a browser dependency.
//
// Example usage:
//
//	pdf, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
//	    RemoteURL:     "ws://chrome:9222",
//	    MaxConcurrent: 2,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pdf.Close()
//
//	renderer := printing.NewDocumentRenderer(pdf, printing.WithPaperSize(printing.PaperSizeA4))
//	artifact, err := renderer.Render(ctx, document.TypeInvoice, payload)
package printing
