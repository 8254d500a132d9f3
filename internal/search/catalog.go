package search

// catalogEntry is one row of the static Flutter/Dart class catalogs used as
// search candidates for the "Flutter API index" and "Dart API index"
// sources named in spec.md §4.K. Grounded on the curated common_flutter_items
// / common_dart_items tables the Python prototype scored inline in
// search_flutter_docs (server.py) rather than a live crawl.
type catalogEntry struct {
	Name        string
	Library     string
	Description string
}

var flutterCatalog = []catalogEntry{
	{"StatefulWidget", "widgets", "Base class for widgets that have mutable state"},
	{"StatelessWidget", "widgets", "Base class for widgets that don't require mutable state"},
	{"State", "widgets", "Logic and internal state for a StatefulWidget"},
	{"InheritedWidget", "widgets", "Base class for widgets that propagate information down the tree"},
	{"Container", "widgets", "A convenience widget that combines common painting, positioning, and sizing"},
	{"Row", "widgets", "Displays children in a horizontal array"},
	{"Column", "widgets", "Displays children in a vertical array"},
	{"Stack", "widgets", "Positions children relative to the box edges"},
	{"Scaffold", "material", "Basic material design visual layout structure"},
	{"Expanded", "widgets", "Expands a child to fill available space in Row/Column"},
	{"Flexible", "widgets", "Controls how a child flexes in Row/Column"},
	{"Wrap", "widgets", "Displays children in multiple runs"},
	{"Align", "widgets", "Aligns a child within itself"},
	{"Center", "widgets", "Centers a child within itself"},
	{"Positioned", "widgets", "Positions a child in a Stack"},
	{"SizedBox", "widgets", "Box with a specified size"},
	{"Navigator", "widgets", "Manages a stack of Route objects"},
	{"Route", "widgets", "An abstraction for an entry managed by a Navigator"},
	{"MaterialPageRoute", "material", "A modal route that replaces the entire screen"},
	{"BottomNavigationBar", "material", "Bottom navigation bar"},
	{"Drawer", "material", "Material design drawer"},
	{"TabBar", "material", "Material design tabs"},
	{"TextField", "material", "A material design text field"},
	{"TextFormField", "material", "A FormField that contains a TextField"},
	{"Form", "widgets", "Container for form fields"},
	{"GestureDetector", "widgets", "Detects gestures on widgets"},
	{"InkWell", "material", "Rectangular area that responds to touch with ripple"},
	{"ListView", "widgets", "Scrollable list of widgets"},
	{"GridView", "widgets", "Scrollable 2D array of widgets"},
	{"PageView", "widgets", "Scrollable list that works page by page"},
	{"AppBar", "material", "A material design app bar"},
	{"Card", "material", "A material design card"},
	{"ListTile", "material", "A single fixed-height row for lists"},
	{"IconButton", "material", "A material design icon button"},
	{"ElevatedButton", "material", "A material design elevated button"},
	{"FloatingActionButton", "material", "A material design floating action button"},
	{"CircularProgressIndicator", "material", "Material circular progress"},
	{"SnackBar", "material", "Material design snackbar"},
	{"Opacity", "widgets", "Makes child partially transparent"},
	{"Transform", "widgets", "Applies transformation before painting"},
	{"ClipRRect", "widgets", "Clips child to rounded rectangle"},
	{"AnimatedContainer", "widgets", "Animated version of Container"},
	{"AnimationController", "animation", "Controls an animation"},
	{"Hero", "widgets", "Marks a child for hero animations"},
	{"FutureBuilder", "widgets", "Builds based on interaction with a Future"},
	{"StreamBuilder", "widgets", "Builds based on interaction with a Stream"},
	{"MediaQuery", "widgets", "Establishes media query subtree"},
	{"Theme", "material", "Applies theme to descendant widgets"},
}

var dartCatalog = []catalogEntry{
	{"List", "dart:core", "An indexable collection of objects with a length"},
	{"Map", "dart:core", "A collection of key/value pairs"},
	{"Set", "dart:core", "A collection of objects with no duplicate elements"},
	{"String", "dart:core", "A sequence of UTF-16 code units"},
	{"Future", "dart:async", "Represents a computation that completes with a value or error"},
	{"Stream", "dart:async", "A source of asynchronous data events"},
	{"Duration", "dart:core", "A span of time"},
	{"DateTime", "dart:core", "An instant in time"},
	{"RegExp", "dart:core", "A regular expression pattern"},
	{"Iterable", "dart:core", "A collection of values that can be accessed sequentially"},
}
