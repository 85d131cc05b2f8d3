package source

import (
	"errors"
	"image"
)

// Join chains sources so their pages follow one another.
func Join(srcs ...Source) Source {
	if len(srcs) == 1 {
		return srcs[0]
	}
	return joined(srcs)
}

type joined []Source

func (j joined) PageCount() int {
	n := 0
	for _, s := range j {
		n += s.PageCount()
	}
	return n
}

func (j joined) locate(index int) (Source, int, error) {
	if index >= 0 {
		for _, s := range j {
			if index < s.PageCount() {
				return s, index, nil
			}
			index -= s.PageCount()
		}
	}
	return nil, 0, checkIndex(-1, j.PageCount())
}

func (j joined) GetPageDimensions(index int) (float64, float64, error) {
	s, i, err := j.locate(index)
	if err != nil {
		return 0, 0, err
	}
	return s.GetPageDimensions(i)
}

func (j joined) RenderPage(index int, dpi int) (image.Image, error) {
	s, i, err := j.locate(index)
	if err != nil {
		return nil, err
	}
	return s.RenderPage(i, dpi)
}

func (j joined) Close() error {
	var errs []error
	for _, s := range j {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
