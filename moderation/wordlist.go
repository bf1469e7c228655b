package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"chat-hub/errors"
)

//go:embed wordlists/*.txt
var wordlistsFS embed.FS

// WordlistData carries the result of the loading process including metadata for logging.
type WordlistData struct {
	Words     []string
	Languages []string
}

// LoadWordlists reads the embedded per-language dictionaries, one word per
// line, and merges them into a unique word set. The language list is derived
// from the file names ("fr.txt" -> "fr") and is only used for logging.
func LoadWordlists() (*WordlistData, error) {
	entries, err := fs.ReadDir(wordlistsFS, "wordlists")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := wordlistsFS.ReadFile("wordlists/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &WordlistData{Words: words, Languages: languages}, nil
}
