package book

import (
	"regexp"
	"strings"

	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// 表单校验提示，与远端服务的前端文案保持一致
const (
	MsgTitleRequired  = "Title is required"
	MsgAuthorRequired = "Author is required"
	MsgISBNRequired   = "ISBN is required"
	MsgISBNFormat     = "ISBN must be a valid 10-17 digit number with optional hyphens"
	MsgCopiesNegative = "Copies must be a non-negative number"
	MsgGenreInvalid   = "Genre must be one of FICTION, NON_FICTION, SCIENCE, HISTORY, BIOGRAPHY, FANTASY"
	MsgISBNDuplicate  = "ISBN already exists"
)

var isbnPattern = regexp.MustCompile(`^[0-9-]{10,17}$`)

// ValidateCreate 校验创建请求，返回nil或apperrors.FieldErrors
func ValidateCreate(d CreateData) error {
	fe := apperrors.FieldErrors{}

	if strings.TrimSpace(d.Title) == "" {
		fe.Add("title", MsgTitleRequired)
	}
	if strings.TrimSpace(d.Author) == "" {
		fe.Add("author", MsgAuthorRequired)
	}
	validateISBN(fe, d.ISBN)
	if !d.Genre.Valid() {
		fe.Add("genre", MsgGenreInvalid)
	}
	if d.Copies < 0 {
		fe.Add("copies", MsgCopiesNegative)
	}

	return fe.Err()
}

// ValidateUpdate 只校验请求中出现的字段
func ValidateUpdate(d UpdateData) error {
	fe := apperrors.FieldErrors{}

	if d.Title != nil && strings.TrimSpace(*d.Title) == "" {
		fe.Add("title", MsgTitleRequired)
	}
	if d.Author != nil && strings.TrimSpace(*d.Author) == "" {
		fe.Add("author", MsgAuthorRequired)
	}
	if d.ISBN != nil {
		validateISBN(fe, *d.ISBN)
	}
	if d.Genre != nil && !d.Genre.Valid() {
		fe.Add("genre", MsgGenreInvalid)
	}
	if d.Copies != nil && *d.Copies < 0 {
		fe.Add("copies", MsgCopiesNegative)
	}

	return fe.Err()
}

func validateISBN(fe apperrors.FieldErrors, isbn string) {
	switch {
	case strings.TrimSpace(isbn) == "":
		fe.Add("isbn", MsgISBNRequired)
	case !isbnPattern.MatchString(isbn):
		fe.Add("isbn", MsgISBNFormat)
	}
}
