package frontier

import (
	"path"
	"strings"
)

// blockedExtensions are resource types that never carry crawlable HTML.
var blockedExtensions = map[string]struct{}{}

func init() {
	for _, ext := range strings.Fields(`
		css js bmp gif jpg jpeg ico png tif tiff mid mp2 mp3 mp4
		wav avi mov mpeg ram m4v mkv ogg ogv pdf
		ps eps tex ppt pptx doc docx xls xlsx names
		data dat exe bz2 tar msi bin 7z psd dmg iso
		epub dll cnf tgz sha1
		thmx mso arff rtf jar csv
		rm smil wmv swf wma zip rar gz`) {
		blockedExtensions[ext] = struct{}{}
	}
}

// HasBlockedExtension reports whether a URL path ends in a non-HTML file
// extension. The comparison is case-insensitive.
func HasBlockedExtension(p string) bool {
	ext := path.Ext(strings.ToLower(p))
	if len(ext) < 2 {
		return false
	}
	_, blocked := blockedExtensions[ext[1:]]
	return blocked
}
