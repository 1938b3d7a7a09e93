package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// queryBody mirrors the backend's query contract. MetadataFilter passes
// through untouched so the null-vs-empty distinction survives the proxy.
type queryBody struct {
	Question       string          `json:"question" validate:"required"`
	K              int             `json:"k" validate:"gte=0,lte=50"`
	MetadataFilter json.RawMessage `json:"metadata_filter"`
}

type indexBody struct {
	Directory *string `json:"directory"`
}

func (s *Server) health(c *fiber.Ctx) error {
	resp, err := s.httpc.Get(s.backendURL + "/health")
	if err != nil {
		return s.unreachable(c, err)
	}
	defer resp.Body.Close()
	return relay(c, resp)
}

func (s *Server) upload(c *fiber.Ctx) error {
	req, err := http.NewRequest(http.MethodPost, s.backendURL+"/v1/upload", bytes.NewReader(c.Body()))
	if err != nil {
		return s.unreachable(c, err)
	}
	// The multipart boundary lives in the content type; forward it as-is.
	req.Header.Set("Content-Type", c.Get("Content-Type"))

	resp, err := s.httpc.Do(req)
	if err != nil {
		return s.unreachable(c, err)
	}
	defer resp.Body.Close()
	return relay(c, resp)
}

func (s *Server) index(c *fiber.Ctx) error {
	var body indexBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid request body"})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid request body"})
	}

	resp, err := s.httpc.Post(s.backendURL+"/v1/index", "application/json", bytes.NewReader(data))
	if err != nil {
		return s.unreachable(c, err)
	}
	defer resp.Body.Close()
	return relay(c, resp)
}

func (s *Server) documents(c *fiber.Ctx) error {
	resp, err := s.httpc.Get(s.backendURL + "/v1/documents")
	if err != nil {
		return s.unreachable(c, err)
	}
	defer resp.Body.Close()
	return relay(c, resp)
}

func (s *Server) deleteDocument(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	req, err := http.NewRequest(http.MethodDelete, s.backendURL+"/v1/documents/"+url.PathEscape(filename), nil)
	if err != nil {
		return s.unreachable(c, err)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return s.unreachable(c, err)
	}
	defer resp.Body.Close()
	return relay(c, resp)
}

func (s *Server) query(c *fiber.Ctx) error {
	var body queryBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid request body"})
	}
	if err := s.validate.Struct(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "question is required"})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid request body"})
	}

	resp, err := s.httpc.Post(s.backendURL+"/v1/query", "application/json", bytes.NewReader(data))
	if err != nil {
		return s.unreachable(c, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return relay(c, resp)
	}

	// Stream the SSE body through chunk by chunk; the backend signals the end
	// of the answer only by closing the connection.
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")
	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer resp.Body.Close()
		buf := make([]byte, 4096)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if werr := w.Flush(); werr != nil {
					return
				}
			}
			if rerr != nil {
				if rerr != io.EOF {
					s.log.Warn("query stream relay interrupted", zap.Error(rerr))
				}
				return
			}
		}
	})
	return nil
}

// relay copies the backend's status and JSON body to the client unchanged.
func relay(c *fiber.Ctx, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"detail": backendUnreachable})
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, ct)
	return c.Status(resp.StatusCode).Send(body)
}

func (s *Server) unreachable(c *fiber.Ctx, err error) error {
	s.log.Warn("backend unreachable", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"detail": backendUnreachable})
}
