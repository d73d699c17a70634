package registrarsvc

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/tidwall/gjson"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

// ErrRejected is returned when the registrar answers but does not accept the deposit.
var ErrRejected = errors.New("deposit rejected by the registrar")

type crossrefRegistrar struct {
	url      string
	username string
	password string
	client   *rest.Client
	logger   core.Logger
}

var _ publication.Registrar = (*crossrefRegistrar)(nil)

// NewCrossrefRegistrar uploads deposits to the Crossref deposit servlet.
func NewCrossrefRegistrar(conf *core.Config, logger core.Logger) publication.Registrar {
	return &crossrefRegistrar{
		url:      conf.Registrar.URL,
		username: conf.Registrar.Username,
		password: conf.Registrar.Password,
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}},
		logger:   logger,
	}
}

func (r *crossrefRegistrar) body(req publication.DepositRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fld := range [][2]string{
		{"operation", "doMDUpload"},
		{"login_id", r.username},
		{"login_passwd", r.password},
	} {
		if err := w.WriteField(fld[0], fld[1]); err != nil {
			return nil, "", errors.Wrap(err, "writing "+fld[0])
		}
	}

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="fname"; filename="%s"`, req.Filename)},
		"Content-Type":        {"application/xml"},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "creating fname part")
	}
	if _, err = part.Write(req.XML); err != nil {
		return nil, "", errors.Wrap(err, "writing deposit")
	}
	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart body")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (r *crossrefRegistrar) Deposit(ctx context.Context, req publication.DepositRequest) (publication.DepositResult, error) {
	body, contentType, err := r.body(req)
	if err != nil {
		return publication.DepositResult{}, err
	}

	httpReq, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: r.url,
		Headers: map[string]string{"Content-Type": contentType, "Accept": "application/json, text/html"},
		Body:    body,
	})
	if err != nil {
		return publication.DepositResult{}, errors.Wrap(err, "building deposit request")
	}
	httpRes, err := r.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return publication.DepositResult{}, errors.Wrap(err, "sending deposit")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return publication.DepositResult{}, errors.Wrap(err, "reading registrar response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return publication.DepositResult{}, errors.Wrapf(ErrRejected, "status %d: %s", res.StatusCode, truncate(res.Body, 200))
	}
	return parseResponse(req.BatchID, res.Body)
}

// parseResponse reads JSON answers ({"batch_id", "status", "message"}) as well as the servlet's HTML acknowledgement.
func parseResponse(batchID, body string) (publication.DepositResult, error) {
	result := publication.DepositResult{BatchID: batchID, Status: "submitted"}

	if gjson.Valid(body) {
		parsed := gjson.Parse(body)
		if id := parsed.Get("batch_id").String(); id != "" {
			result.BatchID = id
		}
		if status := parsed.Get("status").String(); status != "" {
			result.Status = strings.ToLower(status)
		}
		result.Message = parsed.Get("message").String()

		switch result.Status {
		case "failure", "failed", "error", "rejected":
			return publication.DepositResult{}, errors.Wrap(ErrRejected, result.Message)
		}
		return result, nil
	}

	text := strings.ToUpper(body)
	if strings.Contains(text, "FAILURE") || strings.Contains(text, "ERROR") {
		return publication.DepositResult{}, errors.Wrap(ErrRejected, truncate(body, 200))
	}
	result.Message = "batch submission received"
	return result, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
