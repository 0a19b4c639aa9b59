package validation

// knownTypes are names provided by the Swift standard library and the
// system frameworks generated apps import.
var knownTypes = setOf(
	// Swift
	"Any", "AnyObject", "Array", "Bool", "Character", "ClosedRange", "Comparable",
	"CaseIterable", "Codable", "CodingKey", "CustomStringConvertible", "Decodable",
	"Dictionary", "Double", "Encodable", "Equatable", "Error", "Float", "Hashable",
	"Identifiable", "Int", "Int64", "Never", "Optional", "Range", "Result", "Self",
	"Sendable", "Set", "String", "Substring", "UInt", "Void",

	// Foundation
	"Bundle", "Calendar", "CGFloat", "CGPoint", "CGRect", "CGSize", "Data", "Date",
	"DateComponents", "DateFormatter", "Decimal", "DispatchQueue", "IndexSet",
	"JSONDecoder", "JSONEncoder", "Locale", "Measurement", "NSObject", "Notification",
	"NotificationCenter", "NumberFormatter", "ObservableObject", "Published",
	"TimeInterval", "TimeZone", "Timer", "URL", "URLRequest", "URLSession",
	"UserDefaults", "UUID",

	// Concurrency
	"MainActor", "Task",

	// SwiftUI
	"Alert", "Alignment", "Angle", "Animation", "AnyShape", "AnyView", "App",
	"AppStorage", "Binding", "Button", "ButtonStyle", "Capsule", "Circle", "Color",
	"ColorScheme", "DatePicker", "Divider", "DragGesture", "Edge", "EdgeInsets",
	"EditButton", "EmptyView", "Environment", "EnvironmentObject", "EnvironmentValues",
	"Font", "ForEach", "Form", "FocusState", "GeometryProxy", "GeometryReader",
	"Gradient", "Grid", "GridItem", "GridRow", "Group", "HStack", "HorizontalAlignment",
	"Image", "Label", "LazyHGrid", "LazyHStack", "LazyVGrid", "LazyVStack",
	"LinearGradient", "Link", "List", "Menu", "Namespace", "NavigationLink",
	"NavigationPath", "NavigationSplitView", "NavigationStack", "NavigationView",
	"ObservedObject", "Path", "Picker", "ProgressView", "RadialGradient", "Rectangle",
	"RoundedRectangle", "Scene", "SceneStorage", "ScrollView", "ScrollViewReader",
	"SecureField", "Section", "Shape", "Slider", "Spacer", "State", "StateObject",
	"Stepper", "TabView", "Text", "TextEditor", "TextField", "Toggle", "ToolbarItem",
	"ToolbarItemGroup", "Transaction", "UnitPoint", "VStack", "VerticalAlignment",
	"View", "ViewBuilder", "ViewModifier", "WindowGroup", "ZStack",

	// UIKit
	"UIApplication", "UIColor", "UIFont", "UIImage", "UIViewController",
	"UIViewControllerRepresentable", "UIViewRepresentable",

	// SwiftData and Core Data
	"FetchRequest", "FetchedResults", "Model", "ModelContainer", "ModelContext",
	"NSManagedObject", "NSManagedObjectContext", "NSPersistentCloudKitContainer",
	"NSPersistentContainer", "Query",

	// Combine
	"AnyCancellable", "PassthroughSubject", "CurrentValueSubject",
)

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
