// Package catalogtest 内存版的远端目录服务，供测试使用
//
// 行为与线上目录服务保持一致：
//   - 统一响应 {success, message, data, pagination?}
//   - ISBN重复返回MongoServerError(code 11000)
//   - 借阅数量超过副本数返回 "Not enough copies available"
//   - 借阅请求串行处理，副本数由服务端裁决
package catalogtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Book 服务端存储的图书
type Book struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	ISBN        string    `json:"isbn"`
	Description string    `json:"description,omitempty"`
	Copies      int       `json:"copies"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type borrowRecord struct {
	ID        string    `json:"_id"`
	Book      string    `json:"book"`
	Quantity  int       `json:"quantity"`
	DueDate   string    `json:"dueDate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Server 内存目录服务
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	books   map[string]*Book
	order   []string
	borrows []borrowRecord
	nextID  int
	clock   time.Time

	requests sync.Map // "METHOD /path" → *atomic.Int64
	queries  sync.Map // "METHOD /path" → url.Values
	total    atomic.Int64

	gate chan struct{} // 非nil时请求在此阻塞
	gmu  sync.RWMutex
}

func init() {
	gin.SetMode(gin.TestMode)
}

// NewServer 启动服务，测试结束时调用Close
func NewServer() *Server {
	s := &Server{
		books: make(map[string]*Book),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	r := gin.New()
	r.Use(s.count, s.wait)
	r.GET("/api/books", s.listBooks)
	r.POST("/api/books", s.createBook)
	r.GET("/api/books/:id", s.getBook)
	r.PUT("/api/books/:id", s.updateBook)
	r.DELETE("/api/books/:id", s.deleteBook)
	r.GET("/api/borrow", s.summary)
	r.POST("/api/borrow", s.borrow)

	s.Server = httptest.NewServer(r)
	return s
}

// Requests 某个路由收到的请求数，如 Requests("GET /api/books")
func (s *Server) Requests(route string) int64 {
	v, ok := s.requests.Load(route)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// LastQuery 某个路由最近一次请求的查询参数
func (s *Server) LastQuery(route string) url.Values {
	v, ok := s.queries.Load(route)
	if !ok {
		return nil
	}
	return v.(url.Values)
}

// TotalRequests 收到的请求总数
func (s *Server) TotalRequests() int64 {
	return s.total.Load()
}

// Hold 之后的请求阻塞，直到调用返回的release
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})
	s.gmu.Lock()
	s.gate = gate
	s.gmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.gmu.Lock()
			s.gate = nil
			s.gmu.Unlock()
			close(gate)
		})
	}
}

// Seed 直接写入图书，返回ID
func (s *Server) Seed(b Book) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	b.ID = fmt.Sprintf("book-%d", s.nextID)
	s.clock = s.clock.Add(time.Minute)
	b.CreatedAt, b.UpdatedAt = s.clock, s.clock
	if b.Copies > 0 {
		b.Available = true
	}
	s.books[b.ID] = &b
	s.order = append(s.order, b.ID)
	return b.ID
}

// Book 读取服务端的图书
func (s *Server) Book(id string) (Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, false
	}
	return *b, true
}

func (s *Server) count(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	v, _ := s.requests.LoadOrStore(route, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	s.queries.Store(route, c.Request.URL.Query())
	s.total.Add(1)
	c.Next()
}

func (s *Server) wait(c *gin.Context) {
	s.gmu.RLock()
	gate := s.gate
	s.gmu.RUnlock()
	if gate != nil {
		<-gate
	}
	c.Next()
}

func fail(c *gin.Context, status int, message string, detail any) {
	body := gin.H{"success": false, "message": message}
	if detail != nil {
		body["error"] = detail
	}
	c.JSON(status, body)
}

func (s *Server) listBooks(c *gin.Context) {
	s.mu.Lock()
	list := make([]Book, 0, len(s.books))
	for _, id := range s.order {
		if b, ok := s.books[id]; ok {
			list = append(list, *b)
		}
	}
	s.mu.Unlock()

	if genre := c.Query("filter"); genre != "" {
		filtered := list[:0]
		for _, b := range list {
			if b.Genre == genre {
				filtered = append(filtered, b)
			}
		}
		list = filtered
	}

	sortBy := c.DefaultQuery("sortBy", "createdAt")
	desc := strings.EqualFold(c.DefaultQuery("sort", "asc"), "desc")
	sort.SliceStable(list, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "title":
			less = list[i].Title < list[j].Title
		case "author":
			less = list[i].Author < list[j].Author
		case "copies":
			less = list[i].Copies < list[j].Copies
		default:
			less = list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		if desc {
			return !less && !equalBy(sortBy, list[i], list[j])
		}
		return less
	})

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 {
		limit = 10
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}

	total := len(list)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Books retrieved successfully",
		"data":    list[start:end],
		"pagination": gin.H{
			"currentPage": page,
			"totalPages":  (total + limit - 1) / limit,
			"totalBooks":  total,
			"limit":       limit,
		},
	})
}

func equalBy(field string, a, b Book) bool {
	switch field {
	case "title":
		return a.Title == b.Title
	case "author":
		return a.Author == b.Author
	case "copies":
		return a.Copies == b.Copies
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

func (s *Server) getBook(c *gin.Context) {
	b, ok := s.Book(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Book not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book retrieved successfully", "data": b})
}

type bookInput struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Genre       *string `json:"genre"`
	ISBN        *string `json:"isbn"`
	Description *string `json:"description"`
	Copies      *int    `json:"copies"`
	Available   *bool   `json:"available"`
}

func (s *Server) createBook(c *gin.Context) {
	var in bookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	if in.Title == nil || in.Author == nil || in.ISBN == nil || in.Genre == nil || in.Copies == nil {
		fail(c, http.StatusBadRequest, "Validation failed", gin.H{"name": "ValidationError", "errors": gin.H{"title": gin.H{}}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isbnTakenLocked(*in.ISBN, "") {
		fail(c, http.StatusBadRequest, "Validation failed", gin.H{"name": "MongoServerError", "code": 11000, "keyValue": gin.H{"isbn": *in.ISBN}})
		return
	}

	s.nextID++
	s.clock = s.clock.Add(time.Minute)
	b := &Book{
		ID:        fmt.Sprintf("book-%d", s.nextID),
		Title:     *in.Title,
		Author:    *in.Author,
		Genre:     *in.Genre,
		ISBN:      *in.ISBN,
		Copies:    *in.Copies,
		Available: *in.Copies > 0,
		CreatedAt: s.clock,
		UpdatedAt: s.clock,
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.Available != nil {
		b.Available = *in.Available
	}
	s.books[b.ID] = b
	s.order = append(s.order, b.ID)

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Book created successfully", "data": *b})
}

func (s *Server) isbnTakenLocked(isbn, except string) bool {
	for id, b := range s.books {
		if id != except && b.ISBN == isbn {
			return true
		}
	}
	return false
}

func (s *Server) updateBook(c *gin.Context) {
	var in bookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, "Book not found", nil)
		return
	}
	if in.ISBN != nil && s.isbnTakenLocked(*in.ISBN, b.ID) {
		fail(c, http.StatusBadRequest, "Update failed", "E11000 duplicate key error collection: books index: isbn_1")
		return
	}

	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.Author != nil {
		b.Author = *in.Author
	}
	if in.Genre != nil {
		b.Genre = *in.Genre
	}
	if in.ISBN != nil {
		b.ISBN = *in.ISBN
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.Copies != nil {
		b.Copies = *in.Copies
		b.Available = b.Copies > 0
	}
	if in.Available != nil {
		b.Available = *in.Available
	}
	s.clock = s.clock.Add(time.Minute)
	b.UpdatedAt = s.clock

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book updated successfully", "data": *b})
}

func (s *Server) deleteBook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	if _, ok := s.books[id]; !ok {
		fail(c, http.StatusNotFound, "Book not found", nil)
		return
	}
	delete(s.books, id)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book deleted successfully", "data": nil})
}

func (s *Server) borrow(c *gin.Context) {
	var in struct {
		Book     string `json:"book"`
		Quantity int    `json:"quantity"`
		DueDate  string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[in.Book]
	if !ok {
		fail(c, http.StatusNotFound, "Book not found", nil)
		return
	}
	if in.Quantity < 1 || in.Quantity > b.Copies {
		fail(c, http.StatusBadRequest, "Not enough copies available", "Not enough copies available")
		return
	}

	b.Copies -= in.Quantity
	if b.Copies == 0 {
		b.Available = false
	}
	s.clock = s.clock.Add(time.Minute)
	rec := borrowRecord{
		ID:        fmt.Sprintf("borrow-%d", len(s.borrows)+1),
		Book:      b.ID,
		Quantity:  in.Quantity,
		DueDate:   in.DueDate,
		CreatedAt: s.clock,
		UpdatedAt: s.clock,
	}
	s.borrows = append(s.borrows, rec)

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Book borrowed successfully", "data": rec})
}

func (s *Server) summary(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := map[string]int{}
	var ids []string
	for _, rec := range s.borrows {
		if _, seen := totals[rec.Book]; !seen {
			ids = append(ids, rec.Book)
		}
		totals[rec.Book] += rec.Quantity
	}

	data := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		var title, isbn string
		if b, ok := s.books[id]; ok {
			title, isbn = b.Title, b.ISBN
		}
		data = append(data, gin.H{
			"book":          gin.H{"title": title, "isbn": isbn},
			"totalQuantity": totals[id],
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Borrowed books summary retrieved successfully", "data": data})
}
