package buffer

// WordsOnLine returns every identifier-kind word appearing on line i.
func (c *Content) WordsOnLine(i int) []string {
	if i < 0 || i >= len(c.lines) {
		return nil
	}
	text := c.lines[i].Text()
	var words []string
	n := len(text)
	j := 0
	for j < n {
		if isWordByte(text[j]) {
			start := j
			for j < n && isWordByte(text[j]) {
				j++
			}
			words = append(words, text[start:j])
			continue
		}
		j++
	}
	return words
}
