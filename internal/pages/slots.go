package pages

// PageLayout region names. Children without a slot prop route to center.
const (
	SlotHeader = "header"
	SlotFooter = "footer"
	SlotLeft   = "left"
	SlotRight  = "right"
	SlotCenter = "center"
)

var layoutSlots = map[string]bool{
	SlotHeader: true, SlotFooter: true, SlotLeft: true, SlotRight: true, SlotCenter: true,
}

// RouteSlots distributes a PageLayout's children into its named regions.
// Unknown slot values fall back to center, empty regions are omitted from
// the result, and each region's children are sibling-ordered. Adjacent
// regions expanding into omitted ones is the renderer's concern.
func RouteSlots(children []*ComponentInstance) map[string][]*ComponentInstance {
	regions := make(map[string][]*ComponentInstance)
	for _, child := range children {
		slot := child.Slot
		if !layoutSlots[slot] {
			slot = SlotCenter
		}
		regions[slot] = append(regions[slot], child)
	}
	for _, nodes := range regions {
		SortSiblings(nodes)
	}
	return regions
}
