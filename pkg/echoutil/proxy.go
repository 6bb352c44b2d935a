package echoutil

import (
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

// headers which are meaningful only for a single connection.
var hopByHop = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Host",
}

// CopyHeader adds headers in src to dest, except the listed ones (case-insensitive).
func CopyHeader(dest http.Header, src http.Header, except ...string) {
	exc := map[string]struct{}{}
	for _, x := range except {
		exc[strings.ToLower(x)] = struct{}{}
	}

	for k, vs := range src {
		if _, ok := exc[strings.ToLower(k)]; ok {
			continue
		}
		for _, v := range vs {
			dest.Add(k, v)
		}
	}
}

// Proxy forwards the request to the backend, and copies the response back.
//
// The request path is trimmed prefix, and joined to the path of backend.
// Queries are passed as they are.
//
// When the backend is unreachable, it responds 502 Bad Gateway.
func Proxy(c echo.Context, client *http.Client, backend *url.URL, prefix string) error {
	req := c.Request()

	dest := *backend
	dest.Path = path.Join("/", backend.Path, strings.TrimPrefix(req.URL.Path, prefix))
	if strings.HasSuffix(req.URL.Path, "/") && !strings.HasSuffix(dest.Path, "/") {
		dest.Path += "/"
	}
	dest.RawQuery = req.URL.RawQuery

	breq, err := http.NewRequestWithContext(req.Context(), req.Method, dest.String(), req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	breq.ContentLength = req.ContentLength
	CopyHeader(breq.Header, req.Header, hopByHop...)

	resp, err := client.Do(breq)
	if err != nil {
		c.Logger().Warnf("backend %s is unreachable: %v", backend.Host, err)
		return echo.NewHTTPError(http.StatusBadGateway, "analysis service is unreachable")
	}
	defer resp.Body.Close()

	return CopyResponse(c, resp)
}

// CopyResponse writes resp as the response of c.
func CopyResponse(c echo.Context, resp *http.Response) error {
	dst := c.Response()
	CopyHeader(dst.Header(), resp.Header, hopByHop...)
	dst.WriteHeader(resp.StatusCode)

	_, err := io.Copy(dst, resp.Body)
	return err
}
