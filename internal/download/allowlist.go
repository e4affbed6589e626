package download

import "path"

// AllowPatterns selects the artifact set fetched for a shard: configuration,
// safetensors weights, tokenizer models and vocabularies, auxiliary text.
// Patterns match the file's base name.
var AllowPatterns = []string{
	"*.json",
	"*.safetensors",
	"*.py",
	"tokenizer.model",
	"*.tiktoken",
	"*.txt",
}

// Allowed reports whether a repository path is part of the artifact set.
func Allowed(p string) bool {
	base := path.Base(p)
	for _, pat := range AllowPatterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// FilterAllowed keeps regular files whose names match AllowPatterns.
func FilterAllowed(files []RemoteFile) []RemoteFile {
	out := make([]RemoteFile, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !Allowed(f.Path) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TotalSize sums the sizes of files.
func TotalSize(files []RemoteFile) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
